// Package notify delivers breach escalations to webhook contacts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"minrisk/internal/metrics"
)

// Escalation event names. Opened fires once per breach; escalated fires
// once more if the severity later worsens to red.
const (
	EventBreachOpened    = "breach_opened"
	EventBreachEscalated = "breach_escalated"
)

// Escalation is the payload posted to an escalation contact.
type Escalation struct {
	Event        string    `json:"event"`
	BreachRef    string    `json:"breach_ref"`
	Organization string    `json:"organization"`
	Metric       string    `json:"metric"`
	Severity     string    `json:"severity"`
	Value        float64   `json:"value"`
	Variance     float64   `json:"variance"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Webhook posts escalations as JSON. A circuit breaker sheds load from a
// contact endpoint that keeps failing; callers treat every error as
// best-effort delivery loss.
type Webhook struct {
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	fallback string // red-channel contact used when the metric has none
}

func NewWebhook(fallback string, timeout time.Duration) *Webhook {
	return &Webhook{
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "escalation-webhook",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
		}),
	}
}

// Escalate posts e to contact, falling back to the configured red channel
// when the metric carries no contact of its own.
func (w *Webhook) Escalate(ctx context.Context, contact string, e Escalation) error {
	if contact == "" {
		contact = w.fallback
	}
	if contact == "" {
		metrics.EscalationDeliveries.WithLabelValues("unconfigured").Inc()
		return errors.New("no escalation contact configured")
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}

	_, err = w.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, contact, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("escalation webhook: %s", resp.Status)
		}
		return nil, nil
	})
	if err != nil {
		metrics.EscalationDeliveries.WithLabelValues("failed").Inc()
		return err
	}
	metrics.EscalationDeliveries.WithLabelValues("delivered").Inc()
	return nil
}
