package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	keys   map[string]time.Duration
	failed error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{keys: map[string]time.Duration{}}
}

func (s *recordingStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if s.failed != nil {
		return false, s.failed
	}
	if _, taken := s.keys[key]; taken {
		return false, nil
	}
	s.keys[key] = ttl
	return true, nil
}

func (s *recordingStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.keys, k)
	}
	return nil
}

func (s *recordingStore) IdempotencyKey(scope, id string) string {
	return "fl:idempotency:" + scope + ":" + id
}

func TestClaimOnceThenReportsDuplicate(t *testing.T) {
	store := newRecordingStore()
	guard, err := NewGuard(store, 24*time.Hour)
	require.NoError(t, err)
	id := uuid.New()
	ctx := context.Background()

	dup, err := guard.Claim(ctx, "kafka", id)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, map[string]time.Duration{"fl:idempotency:evt:published:kafka:" + id.String(): 24 * time.Hour}, store.keys)

	dup, err = guard.Claim(ctx, "kafka", id)
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = guard.Claim(ctx, "pubsub", id)
	require.NoError(t, err)
	assert.False(t, dup, "claims are per publisher")
}

func TestReleaseAllowsReclaim(t *testing.T) {
	guard, err := NewGuard(newRecordingStore(), time.Hour)
	require.NoError(t, err)
	id := uuid.New()
	ctx := context.Background()

	_, err = guard.Claim(ctx, "pubsub", id)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "pubsub", id))

	dup, err := guard.Claim(ctx, "pubsub", id)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestClaimErrors(t *testing.T) {
	boom := errors.New("boom")
	store := newRecordingStore()
	store.failed = boom
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.Claim(ctx, "kafka", uuid.New())
	assert.ErrorIs(t, err, boom)
	_, err = guard.Claim(ctx, "", uuid.New())
	assert.ErrorIs(t, err, ErrNoPublisher)
	_, err = guard.Claim(ctx, "kafka", uuid.Nil)
	assert.ErrorIs(t, err, ErrNoEventID)
	assert.ErrorIs(t, guard.Release(ctx, "kafka", uuid.Nil), ErrNoEventID)
}

func TestNewGuardValidation(t *testing.T) {
	_, err := NewGuard(nil, time.Hour)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = NewGuard(newRecordingStore(), -time.Second)
	assert.ErrorIs(t, err, ErrNegativeTTL)
}
