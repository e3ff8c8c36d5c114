package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json"})

	logger.Info("login",
		slog.String("email", "a@jwt.com"),
		slog.String("password", "hunter2"),
		slog.String("Authorization", "Bearer abc.def.ghi"),
		slog.String("detail", "forwarded header Bearer abc.def.ghi to factory"),
		slog.Group("factory", slog.String("apiKey", "k-123")),
	)

	raw := buf.String()
	assert.NotContains(t, raw, "hunter2")
	assert.NotContains(t, raw, "abc.def.ghi")
	assert.NotContains(t, raw, "k-123")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a@jwt.com", entry["email"])
	assert.Equal(t, redacted, entry["password"])
	assert.Equal(t, "forwarded header Bearer [REDACTED] to factory", entry["detail"])
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, nil).Info("hello", slog.String("token", "secret-token"))

	assert.Contains(t, buf.String(), "msg=hello")
	assert.NotContains(t, buf.String(), "secret-token")
}
