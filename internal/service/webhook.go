package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	webhookOutcomeDelivered = "delivered"
	webhookOutcomeFailed    = "failed"
	webhookOutcomeRejected  = "rejected"
)

// WebhookMessage is the JSON body posted to the notification webhook.
type WebhookMessage struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	From      string    `json:"from,omitempty"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Message   string    `json:"message"`
	Token     string    `json:"token,omitempty"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// webhookClient posts messages through a circuit breaker so a dead endpoint
// stops costing a timeout per notification.
type webhookClient struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[int]
}

func newWebhookClient(url string, timeout time.Duration, client *http.Client, logger *zap.Logger) *webhookClient {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "notification-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("webhook circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &webhookClient{url: url, client: client, cb: cb}
}

// Post delivers msg and returns the outcome label used for metrics.
func (w *webhookClient) Post(ctx context.Context, msg WebhookMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return webhookOutcomeFailed, err
	}
	_, err = w.cb.Execute(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return resp.StatusCode, fmt.Errorf("webhook responded %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	})
	switch {
	case err == nil:
		return webhookOutcomeDelivered, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return webhookOutcomeRejected, err
	default:
		return webhookOutcomeFailed, err
	}
}
