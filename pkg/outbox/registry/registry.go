// Package registry maps outbox rows to the typed domain events they carry.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string { return e.Err.Error() }

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// IsNonRetryable reports whether err came from a row that must be parked.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every domain event to topic. Sinks key messages by
// aggregate id so events for one order stay ordered. Password reset requests
// carry a secret and go to "<topic>.notifications", read only by the mailer.
func NewEventRegistry(topic string) (*EventRegistry, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("event topic is required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(enums.EventOrderCreated, enums.AggregateOrder, topic, decoder[payloads.OrderCreatedEvent]())
	reg.add(enums.EventOrderDecided, enums.AggregateOrder, topic, decoder[payloads.OrderDecidedEvent]())
	reg.add(enums.EventOrderStatusChanged, enums.AggregateOrder, topic, decoder[payloads.OrderStatusChangedEvent]())
	reg.add(enums.EventWalletTransactionRecorded, enums.AggregateWallet, topic, decoder[payloads.WalletTransactionRecordedEvent]())
	reg.add(enums.EventPasswordResetRequested, enums.AggregateUser, topic+".notifications", decoder[payloads.PasswordResetRequestedEvent]())
	return reg, nil
}

func (r *EventRegistry) add(event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, decode func(json.RawMessage) (any, error)) {
	r.entries[event] = EventDescriptor{EventType: event, AggregateType: aggregate, Topic: topic, decode: decode}
}

func decoder[T any]() func(json.RawMessage) (any, error) {
	return func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return nil, permanent("%s belongs to %s, row says %s", row.EventType, desc.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate id", row.EventType)
	}

	env, err := outbox.OpenEnvelope(row.Payload)
	if err != nil {
		return nil, NonRetryableError{Err: fmt.Errorf("%s: %w", row.EventType, err)}
	}
	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, permanent("decode %s data: %v", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
