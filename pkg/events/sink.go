// Package events delivers outbox rows to the configured message broker.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/pubsub"
)

// Message is a broker-neutral domain event.
type Message struct {
	Topic      string
	Key        string
	Value      []byte
	Attributes map[string]string
}

// Sink publishes messages synchronously: Publish returns once the broker
// acknowledged the write or failed.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}

// PermanentError marks a publish failure that will not succeed on retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent publish error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a PermanentError.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// NewSink builds the sink selected by cfg.Events.Backend.
func NewSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case config.EventsBackendKafka:
		return NewKafkaSink(cfg.Events.Brokers())
	case config.EventsBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Events, logg)
		if err != nil {
			return nil, err
		}
		return NewPubSubSink(client), nil
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Events.Backend)
	}
}

// Topic returns the topic name events are routed to for the configured backend.
func Topic(cfg config.EventsConfig) string {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), config.EventsBackendPubSub) {
		return cfg.PubSubTopic
	}
	return cfg.KafkaTopic
}
