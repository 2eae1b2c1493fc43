package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/events"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

const testTopic = "farmlink.domain-events"

type memOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	retried   []uuid.UUID
	terminal  []uuid.UUID
}

func (m *memOutbox) FetchUnpublished(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	if len(m.rows) > limit {
		return m.rows[:limit], nil
	}
	return m.rows, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ error, terminal bool, _ time.Time) error {
	if terminal {
		m.terminal = append(m.terminal, id)
	} else {
		m.retried = append(m.retried, id)
	}
	return nil
}

type inlineTx struct{}

func (inlineTx) Ping(context.Context) error                              { return nil }
func (inlineTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

// scriptedSink returns the queued errors in order, then succeeds.
type scriptedSink struct {
	script []error
	sent   []events.Message
}

func (s *scriptedSink) Name() string               { return "scripted" }
func (s *scriptedSink) Ping(context.Context) error { return nil }
func (s *scriptedSink) Close() error               { return nil }

func (s *scriptedSink) Publish(_ context.Context, msg events.Message) error {
	s.sent = append(s.sent, msg)
	if len(s.script) == 0 {
		return nil
	}
	err := s.script[0]
	s.script = s.script[1:]
	return err
}

type mapGuard struct {
	claimed  map[uuid.UUID]bool
	released []uuid.UUID
}

func (g *mapGuard) Claim(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	dup := g.claimed[id]
	g.claimed[id] = true
	return dup, nil
}

func (g *mapGuard) Release(_ context.Context, _ string, id uuid.UUID) error {
	delete(g.claimed, id)
	g.released = append(g.released, id)
	return nil
}

func newRelay(t *testing.T, store *memOutbox, sink events.Sink, guard deliveryGuard) *Relay {
	t.Helper()
	reg, err := registry.NewEventRegistry(testTopic)
	require.NoError(t, err)
	params := RelayParams{
		Outbox:   config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5},
		Logger:   logger.Nop(),
		DB:       inlineTx{},
		Sink:     sink,
		Registry: reg,
		StoreFor: func(*gorm.DB) outboxStore { return store },
	}
	if guard != nil {
		params.Guard = guard
	}
	relay, err := NewRelay(params)
	require.NoError(t, err)
	return relay
}

func orderCreatedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"order_id":"` + uuid.NewString() + `"}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestDrainKeepsGoingAfterTransientFailure(t *testing.T) {
	store := &memOutbox{rows: []models.OutboxEvent{orderCreatedRow(t, 0), orderCreatedRow(t, 0)}}
	sink := &scriptedSink{script: []error{errors.New("transient")}}
	relay := newRelay(t, store, sink, nil)

	seen, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Equal(t, []uuid.UUID{store.rows[0].ID}, store.retried)
	assert.Equal(t, []uuid.UUID{store.rows[1].ID}, store.published)
	assert.Empty(t, store.terminal)

	require.Len(t, sink.sent, 2)
	assert.Equal(t, store.rows[1].AggregateID.String(), sink.sent[1].Key)
	assert.Equal(t, testTopic, sink.sent[1].Topic)
	assert.Equal(t, string(enums.EventOrderCreated), sink.sent[1].Attributes["event_type"])
}

func TestDrainParksRowsThatCannotSucceed(t *testing.T) {
	unknown := orderCreatedRow(t, 0)
	unknown.EventType = "product_archived"

	cases := map[string]struct {
		row    models.OutboxEvent
		script []error
		sends  int
	}{
		"permanent sink error": {row: orderCreatedRow(t, 0), script: []error{&events.PermanentError{Err: errors.New("too large")}}, sends: 1},
		"attempts exhausted":   {row: orderCreatedRow(t, 4), script: []error{errors.New("still down")}, sends: 1},
		"unknown event type":   {row: unknown, sends: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := &memOutbox{rows: []models.OutboxEvent{tc.row}}
			sink := &scriptedSink{script: tc.script}

			_, err := newRelay(t, store, sink, nil).drain(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{tc.row.ID}, store.terminal)
			assert.Empty(t, store.retried)
			assert.Len(t, sink.sent, tc.sends)
		})
	}
}

func TestDrainSkipsRowsAlreadyDelivered(t *testing.T) {
	store := &memOutbox{rows: []models.OutboxEvent{orderCreatedRow(t, 0)}}
	sink := &scriptedSink{}
	guard := &mapGuard{claimed: map[uuid.UUID]bool{store.rows[0].ID: true}}

	_, err := newRelay(t, store, sink, guard).drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sink.sent)
	assert.Equal(t, []uuid.UUID{store.rows[0].ID}, store.published)
}

func TestDrainReleasesClaimWhenPublishFails(t *testing.T) {
	store := &memOutbox{rows: []models.OutboxEvent{orderCreatedRow(t, 0)}}
	guard := &mapGuard{claimed: map[uuid.UUID]bool{}}

	_, err := newRelay(t, store, &scriptedSink{script: []error{errors.New("transient")}}, guard).drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{store.rows[0].ID}, guard.released)
	assert.Empty(t, guard.claimed)
}

func TestDrainEmptyOutbox(t *testing.T) {
	seen, err := newRelay(t, &memOutbox{}, &scriptedSink{}, nil).drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seen)
}

func TestRunStopsOnCancel(t *testing.T) {
	relay := newRelay(t, &memOutbox{}, &scriptedSink{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.Canceled)
}

func TestErrorBackoffIsCapped(t *testing.T) {
	relay := newRelay(t, &memOutbox{}, &scriptedSink{}, nil)
	b := relay.errorBackoff()
	var last time.Duration
	for range 12 {
		last, _ = b.Next()
	}
	assert.LessOrEqual(t, last, maxBackoff)
	assert.Greater(t, last, maxBackoff/2)
}
