package app

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"jwt":           {},
	"apikey":        {},
	"api_key":       {},
	"authorization": {},
	"secret":        {},
}

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.=]+`)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, ReplaceAttr: redact}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// redact masks credentials so passwords and tokens never reach the log sink.
func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); bearerPattern.MatchString(v) {
			return slog.String(a.Key, bearerPattern.ReplaceAllString(v, "Bearer "+redacted))
		}
	}
	return a
}
