// Package redis holds the shared Redis connection used for sessions,
// idempotency records, auth rate limits and the cron lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// Namespace prefixes every key this service writes.
const Namespace = "fl"

var errNotReady = errors.New("redis client not initialized")

// commands is the go-redis surface the client relies on; tests swap it out.
type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Client is the farmlink Redis handle.
type Client struct {
	Keys

	cmd  commands
	conn *redis.Client
}

// IdempotencyStore is what the Idempotency-Key middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// New connects and pings before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := newOptions(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redisDB", opts.DB), "redis ready")
	}
	return &Client{Keys: Keys{Namespace: Namespace}, cmd: conn, conn: conn}, nil
}

// newOptions prefers FARMLINK_REDIS_URL; pool and timeout settings from
// config fill anything the URL leaves unset.
func newOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotReady
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil for a missing key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotReady
	}
	return c.cmd.Get(ctx, key).Result()
}

// GetDel reads and removes key in one round trip, so only one caller can
// consume a value. A missing key yields redis.Nil.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotReady
	}
	return c.cmd.GetDel(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotReady
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotReady
	}
	return c.cmd.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotReady
	}
	return c.cmd.Ping(ctx).Err()
}

// FixedWindowAllow counts a hit against scope and reports whether the count
// is still within limit for the current window. The window TTL is set with
// EXPIRE NX on every hit, so a lost EXPIRE after the first INCR cannot leave
// an immortal counter.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.cmd == nil {
		return false, 0, errNotReady
	}
	key := c.RateLimitKey(scope)
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if window > 0 {
		if err := c.cmd.ExpireNX(ctx, key, window).Err(); err != nil {
			return false, count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count <= limit, count, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Keys builds namespaced keys, e.g. fl:idempotency:<scope>:<id>.
type Keys struct {
	Namespace string
}

func (k Keys) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

func (k Keys) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

func (k Keys) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

// SessionsRevokedKey holds the cutoff before which every session of the
// user is treated as revoked.
func (k Keys) SessionsRevokedKey(userID string) string {
	return k.join("session", "revoked_before", userID)
}

func (k Keys) PasswordResetKey(userID string) string {
	return k.join("password_reset", userID)
}

// LockKey names a distributed lock such as the cron cycle lock.
func (k Keys) LockKey(name string) string {
	return k.join("lock", name)
}

func (k Keys) join(parts ...string) string {
	ns := k.Namespace
	if ns == "" {
		ns = Namespace
	}
	out := []string{ns}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}
