package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL applies when TokenConfig.TTL is zero.
const DefaultTokenTTL = 24 * time.Hour

// minSecretLength is the shortest HS256 signing key accepted.
const minSecretLength = 32

// Claims is the signed payload of a session token. RegisteredClaims.ID (jti)
// is the token identity used to key the active-session record.
type Claims struct {
	UserID int64            `json:"id"`
	Name   string           `json:"name"`
	Email  string           `json:"email"`
	Roles  []RoleAssignment `json:"roles"`
	jwt.RegisteredClaims
}

// Principal rebuilds the identity carried by the claims.
func (c *Claims) Principal() *Principal {
	roles := make([]RoleAssignment, len(c.Roles))
	copy(roles, c.Roles)
	return &Principal{ID: c.UserID, Name: c.Name, Email: c.Email, Roles: roles}
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// TokenCodec signs and verifies HS256 session tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenCodec validates cfg and builds a codec.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("auth: token secret must be at least %d bytes", minSecretLength)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{secret: []byte(cfg.Secret), ttl: ttl, issuer: cfg.Issuer, now: now}, nil
}

// TTL returns the lifetime given to issued tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// NewClaims stamps a fresh token identity, issue time and expiry onto the principal's claims.
func (c *TokenCodec) NewClaims(p *Principal) *Claims {
	now := c.now().UTC().Truncate(time.Second)
	roles := make([]RoleAssignment, len(p.Roles))
	copy(roles, p.Roles)
	return &Claims{
		UserID: p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
}

// Issue signs claims into a compact token.
func (c *TokenCodec) Issue(claims *Claims) (string, error) {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return "", errors.New("auth: claims require an identity and expiry")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry. Every failure is one
// of ErrTokenMalformed, ErrTokenExpired or ErrTokenSignature, all of which
// match ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.UserID <= 0 {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
