package reset

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memKV) GetDel(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	delete(m.data, key)
	return v, nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) PasswordResetKey(userID string) string { return "reset:" + userID }

func newTestManager(t *testing.T, opts ...Option) (*Manager, *memKV, *time.Time) {
	t.Helper()
	kv := newMemKV()
	m := newManager(kv, opts...)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m, kv, &clock
}

func TestIssueStoresDigestOnly(t *testing.T) {
	m, kv, _ := newTestManager(t)
	userID := uuid.New()

	code, err := m.Issue(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, code.Value, 6)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC), code.ExpiresAt)

	key := kv.PasswordResetKey(userID.String())
	assert.NotContains(t, kv.data[key], code.Value)
	assert.Equal(t, DefaultTTL, kv.ttls[key])

	_, err = m.Issue(context.Background(), uuid.Nil)
	assert.Error(t, err)
}

func TestConsumeIsSingleUse(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	code, err := m.Issue(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, m.Consume(ctx, userID, " "+code.Value+" "))
	assert.ErrorIs(t, m.Consume(ctx, userID, code.Value), ErrInvalidCode)
}

func TestIssueReplacesPreviousCode(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := m.Issue(ctx, userID)
	require.NoError(t, err)
	second, err := m.Issue(ctx, userID)
	require.NoError(t, err)

	if first.Value != second.Value {
		assert.ErrorIs(t, m.Consume(ctx, userID, first.Value), ErrInvalidCode)
	}
	require.NoError(t, m.Consume(ctx, userID, second.Value))
}

func TestConsumeLimitsAttempts(t *testing.T) {
	m, kv, clock := newTestManager(t, WithMaxAttempts(3))
	ctx := context.Background()
	userID := uuid.New()

	code, err := m.Issue(ctx, userID)
	require.NoError(t, err)
	wrong := "000000"
	if code.Value == wrong {
		wrong = "111111"
	}

	*clock = clock.Add(5 * time.Minute)
	assert.ErrorIs(t, m.Consume(ctx, userID, wrong), ErrInvalidCode)
	assert.Equal(t, 10*time.Minute, kv.ttls[kv.PasswordResetKey(userID.String())], "a miss keeps the original expiry")
	assert.ErrorIs(t, m.Consume(ctx, userID, wrong), ErrInvalidCode)
	assert.ErrorIs(t, m.Consume(ctx, userID, wrong), ErrTooManyAttempts)

	assert.ErrorIs(t, m.Consume(ctx, userID, code.Value), ErrInvalidCode, "the code is gone after the last miss")
}

func TestConsumeRejectsMalformedInput(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := m.Issue(ctx, userID)
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567"} {
		assert.ErrorIs(t, m.Consume(ctx, userID, code), ErrInvalidCode, "code %q", code)
	}
	assert.ErrorIs(t, m.Consume(ctx, uuid.Nil, "123456"), ErrInvalidCode)
	assert.ErrorIs(t, m.Consume(ctx, uuid.New(), "123456"), ErrInvalidCode)
}

func TestNewManagerRequiresClient(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)
}
