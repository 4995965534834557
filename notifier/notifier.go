// Package notifier is the boundary to the notification transport. The
// service only decides that a notification is owed and with what payload;
// delivery is an external consumer of the notification topic. Sends are
// at-least-once: a failure here is logged by the caller, never propagated
// to the request that triggered it.
package notifier

import (
	"context"
	"fmt"
	"os"
	"time"

	"fulfillment-svc/circuitbreaker"
	"fulfillment-svc/kafka"
	"fulfillment-svc/models"

	"go.uber.org/zap"
)

// sendTimeout bounds a single publish so a slow broker cannot hold a
// request open after its business effect has already committed.
const sendTimeout = 5 * time.Second

type Notifier struct {
	producer kafka.Sender
	breaker  *circuitbreaker.CircuitBreaker
	topic    string
	timeout  time.Duration
	logger   *zap.Logger
}

func New(producer kafka.Sender, logger *zap.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		breaker:  circuitbreaker.New(5, 30*time.Second),
		topic:    getEnv("NOTIFICATION_TOPIC", "notification_events"),
		timeout:  sendTimeout,
		logger:   logger,
	}
}

// Send publishes a notification request for recipient. It returns an error
// so callers can count failures, but callers must treat it as non-fatal.
func (n *Notifier) Send(ctx context.Context, recipient string, kind models.NotificationKind, payload map[string]any) error {
	if recipient == "" {
		return fmt.Errorf("notification without recipient")
	}

	event := models.NotificationEvent{
		Recipient: recipient,
		Kind:      kind,
		Payload:   payload,
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.breaker.Execute(func() error {
		done := make(chan error, 1)
		go func() {
			done <- kafka.PublishEvent(ctx, n.producer, n.topic, event, n.logger)
		}()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return fmt.Errorf("notification publish timed out: %w", ctx.Err())
		}
	})
	if err != nil {
		n.logger.Error("Failed to publish notification",
			zap.String("recipient", recipient),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
