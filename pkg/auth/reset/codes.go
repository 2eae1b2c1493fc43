// Package reset issues the short numeric codes used to reset a forgotten
// password. Only a digest of each code is stored in Redis.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/angelmondragon/farmlink-backend/pkg/redis"
)

const (
	codeDigits         = 6
	DefaultTTL         = 15 * time.Minute
	DefaultMaxAttempts = 5
)

var (
	ErrInvalidCode     = errors.New("invalid or expired reset code")
	ErrTooManyAttempts = errors.New("too many reset code attempts")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PasswordResetKey(userID string) string
}

// Code is a freshly issued reset code. Value is only ever handed to the
// delivery channel.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

type entry struct {
	Digest    string    `json:"code_sha256"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager keeps at most one live code per user. Issuing a new code replaces
// the previous one.
type Manager struct {
	kv          store
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

func NewManager(client *redisclient.Client, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, opts...), nil
}

func newManager(kv store, opts ...Option) *Manager {
	m := &Manager{kv: kv, ttl: DefaultTTL, maxAttempts: DefaultMaxAttempts, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Manager) Issue(ctx context.Context, userID uuid.UUID) (Code, error) {
	if userID == uuid.Nil {
		return Code{}, errors.New("user id is required")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return Code{}, fmt.Errorf("generate reset code: %w", err)
	}
	code := fmt.Sprintf("%0*d", codeDigits, n.Int64())
	expiresAt := m.now().Add(m.ttl).UTC()

	raw, err := json.Marshal(entry{Digest: digest(code), ExpiresAt: expiresAt})
	if err != nil {
		return Code{}, fmt.Errorf("encode reset code: %w", err)
	}
	if err := m.kv.Set(ctx, m.kv.PasswordResetKey(userID.String()), string(raw), m.ttl); err != nil {
		return Code{}, err
	}
	return Code{Value: code, ExpiresAt: expiresAt}, nil
}

// Consume accepts the user's code once. A wrong guess counts against the
// code; the last allowed miss deletes it.
func (m *Manager) Consume(ctx context.Context, userID uuid.UUID, code string) error {
	code = strings.TrimSpace(code)
	if userID == uuid.Nil || len(code) != codeDigits {
		return ErrInvalidCode
	}
	key := m.kv.PasswordResetKey(userID.String())

	raw, err := m.kv.Get(ctx, key)
	if err != nil {
		return missing(err)
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Digest == "" {
		_ = m.kv.Del(ctx, key)
		return ErrInvalidCode
	}

	if subtle.ConstantTimeCompare([]byte(e.Digest), []byte(digest(code))) != 1 {
		return m.miss(ctx, key, e)
	}

	taken, err := m.kv.GetDel(ctx, key)
	if err != nil {
		return missing(err)
	}
	if taken != raw {
		return ErrInvalidCode
	}
	return nil
}

func (m *Manager) miss(ctx context.Context, key string, e entry) error {
	e.Attempts++
	remaining := e.ExpiresAt.Sub(m.now())
	if e.Attempts >= m.maxAttempts || remaining <= 0 {
		if err := m.kv.Del(ctx, key); err != nil {
			return err
		}
		if e.Attempts >= m.maxAttempts {
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode reset code: %w", err)
	}
	if err := m.kv.Set(ctx, key, string(raw), remaining); err != nil {
		return err
	}
	return ErrInvalidCode
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func missing(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidCode
	}
	return err
}
