package factory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:          url,
		APIKey:           "factory-key",
		Timeout:          time.Second,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSendOrderPostsDinerAndOrder(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/order", r.URL.Path)
		assert.Equal(t, "Bearer factory-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"reportUrl":"http://factory/report/1","jwt":"a.b.c"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL + "/")
	result, err := client.SendOrder(context.Background(), Diner{ID: 3, Name: "dana", Email: "d@jwt.com"}, map[string]any{"id": 9})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "a.b.c", result.JWT)
	assert.Equal(t, "http://factory/report/1", result.ReportURL)
	assert.Equal(t, map[string]any{"id": float64(3), "name": "dana", "email": "d@jwt.com"}, received["diner"])
	assert.Equal(t, map[string]any{"id": float64(9)}, received["order"])
}

func TestSendOrderRejectedIsResultNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad order","reportUrl":"http://factory/report/2"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).SendOrder(context.Background(), Diner{ID: 1}, nil)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "http://factory/report/2", result.ReportURL)
}

func TestBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"reportUrl":"http://factory/report/3"}`))
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)
	ctx := context.Background()

	for range 2 {
		result, err := client.SendOrder(ctx, Diner{ID: 1}, nil)
		require.NoError(t, err)
		assert.False(t, result.OK)
	}
	assert.Equal(t, "open", client.State())

	_, err := client.SendOrder(ctx, Diner{ID: 1}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendOrderTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).SendOrder(context.Background(), Diner{ID: 1}, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
