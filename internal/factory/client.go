// Package factory talks to the remote pizza factory that bakes orders and
// signs verification tokens for them.
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("factory: unavailable")

var errServerStatus = errors.New("factory: server error")

// Diner identifies who placed the order.
type Diner struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Result is the factory's answer to an order.
type Result struct {
	OK        bool
	Status    int
	ReportURL string
	JWT       string
}

type orderRequest struct {
	Diner Diner `json:"diner"`
	Order any   `json:"order"`
}

type orderResponse struct {
	ReportURL string `json:"reportUrl"`
	JWT       string `json:"jwt"`
	Message   string `json:"message"`
}

// Config configures the client.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Logger           *slog.Logger
}

// Client wraps interactions with the factory API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Result]
	logger     *slog.Logger
}

// NewClient constructs a new client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:    "pizza-factory",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("factory breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// SendOrder submits order for baking. A non-2xx answer is a Result with OK
// false; only transport failures and an open breaker are errors.
func (c *Client) SendOrder(ctx context.Context, diner Diner, order any) (*Result, error) {
	result, err := c.breaker.Execute(func() (*Result, error) {
		return c.post(ctx, "/api/order", orderRequest{Diner: diner, Order: order})
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errServerStatus) && result != nil:
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrUnavailable
	}
	return nil, err
}

// State reports the breaker state for health output.
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("factory request failed", slog.String("url", url), slog.Any("error", err))
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var decoded orderResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode factory response: %w", err)
		}
	}
	c.logger.Info("factory request",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	result := &Result{
		OK:        resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:    resp.StatusCode,
		ReportURL: decoded.ReportURL,
		JWT:       decoded.JWT,
	}
	if resp.StatusCode >= 500 {
		return result, errServerStatus
	}
	return result, nil
}
