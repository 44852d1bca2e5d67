// Package events publishes booking lifecycle events to Kafka for downstream
// analytics.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/naijago/internal/booking"
)

type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

type payload struct {
	Session string         `json:"session"`
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Sink returns a booking.Sink that publishes the session's events keyed by
// session ID. Publish failures are logged, never surfaced to the caller.
func (p *Publisher) Sink(sessionID string) booking.Sink {
	return func(ev booking.Event) {
		body, err := json.Marshal(payload{Session: sessionID, Type: ev.Type, At: ev.At, Detail: ev.Detail})
		if err != nil {
			p.logger.Error("marshal booking event", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(sessionID),
			Value: body,
		}); err != nil {
			p.logger.Error("publish booking event", "type", ev.Type, "error", err)
		}
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
