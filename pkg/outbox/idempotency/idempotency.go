// Package idempotency tracks which outbox events a sink already received.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoStore     = errors.New("idempotency store is required")
	ErrNegativeTTL = errors.New("ttl must be non-negative")
	ErrNoPublisher = errors.New("publisher name is required")
	ErrNoEventID   = errors.New("event id is required")
)

// keyStore is the slice of the redis client a Guard uses.
type keyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard remembers deliveries so a failed MarkPublished does not turn into a
// second publish on the next poll. Keys look like
// fl:idempotency:evt:published:<publisher>:<event_id>.
type Guard struct {
	store keyStore
	ttl   time.Duration
}

func NewGuard(store keyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if ttl < 0 {
		return nil, ErrNegativeTTL
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim records the delivery and reports whether someone got there first.
func (g *Guard) Claim(ctx context.Context, publisher string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(publisher, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Release forgets a claim after the publish itself failed.
func (g *Guard) Release(ctx context.Context, publisher string, eventID uuid.UUID) error {
	key, err := g.key(publisher, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(publisher string, eventID uuid.UUID) (string, error) {
	switch {
	case publisher == "":
		return "", ErrNoPublisher
	case eventID == uuid.Nil:
		return "", ErrNoEventID
	}
	return g.store.IdempotencyKey("evt:published:"+publisher, eventID.String()), nil
}
