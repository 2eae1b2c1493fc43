package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
)

type fakeCommands struct {
	values   map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		values:   map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	delete(f.values, key)
	return cmd
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func newTestClient(cmd commands) *Client {
	return &Client{Keys: Keys{Namespace: Namespace}, cmd: cmd}
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := newTestClient(fake)

	for i := int64(1); i <= 2; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "login:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}
	allowed, count, err := client.FixedWindowAllow(ctx, "login:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, time.Minute, fake.ttls["fl:rate_limit:login:1.2.3.4"])
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newFakeCommands())

	key := client.AccessSessionKey("access-1")
	require.NoError(t, client.Set(ctx, key, "refresh-hash", 10*time.Minute))

	v, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "refresh-hash", v)

	v, err = client.GetDel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "refresh-hash", v)
	_, err = client.GetDel(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, client.Set(ctx, key, "again", time.Minute))
	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestZeroClientErrors(t *testing.T) {
	var client Client
	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), errNotReady)
	_, err := client.SetNX(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotReady)
	_, err = client.GetDel(ctx, "k")
	assert.ErrorIs(t, err, errNotReady)
	_, _, err = client.FixedWindowAllow(ctx, "s", 1, time.Second)
	assert.ErrorIs(t, err, errNotReady)
	assert.NoError(t, client.Close())
}

func TestNewOptions(t *testing.T) {
	_, err := newOptions(config.RedisConfig{})
	require.Error(t, err)

	opts, err := newOptions(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, ReadTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	opts, err = newOptions(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestKeys(t *testing.T) {
	k := Keys{}
	assert.Equal(t, "fl:idempotency:POST /api/orders:abc", k.IdempotencyKey("POST /api/orders", "abc"))
	assert.Equal(t, "fl:rate_limit:login", k.RateLimitKey("login"))
	assert.Equal(t, "fl:session:access:abc", k.AccessSessionKey("abc"))
	assert.Equal(t, "fl:lock:cron", k.LockKey("cron"))
	assert.Equal(t, "fl:session:revoked_before:u1", k.SessionsRevokedKey("u1"))
	assert.Equal(t, "fl:password_reset:u1", k.PasswordResetKey("u1"))
	assert.Equal(t, "fl:idempotency:id", k.IdempotencyKey(" ", "id"))
}
