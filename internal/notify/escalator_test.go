package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEscalation() Escalation {
	return Escalation{
		Event:        "breach_opened",
		BreachRef:    "9f0c2c5e-2a39-4f0e-8c40-0a8e1a1d4b6b",
		Organization: "Demo Risk Co",
		Metric:       "critical vulnerabilities open > 30d",
		Severity:     "red",
		Value:        14,
		Variance:     4,
		DetectedAt:   time.Now().UTC(),
	}
}

func TestWebhookEscalate_Delivers(t *testing.T) {
	var got Escalation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w := NewWebhook("", 2*time.Second)
	err := w.Escalate(context.Background(), srv.URL, testEscalation())
	require.NoError(t, err)
	assert.Equal(t, "breach_opened", got.Event)
	assert.Equal(t, "red", got.Severity)
}

func TestWebhookEscalate_FallbackContact(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 2*time.Second)
	require.NoError(t, w.Escalate(context.Background(), "", testEscalation()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	unconfigured := NewWebhook("", 2*time.Second)
	assert.Error(t, unconfigured.Escalate(context.Background(), "", testEscalation()))
}

func TestWebhookEscalate_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook("", 2*time.Second)
	assert.Error(t, w.Escalate(context.Background(), srv.URL, testEscalation()))
}

func TestWebhookEscalate_BreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook("", 2*time.Second)
	for i := 0; i < 5; i++ {
		assert.Error(t, w.Escalate(context.Background(), srv.URL, testEscalation()))
	}
	served := atomic.LoadInt32(&hits)

	err := w.Escalate(context.Background(), srv.URL, testEscalation())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, served, atomic.LoadInt32(&hits), "open breaker must not reach the endpoint")
}
