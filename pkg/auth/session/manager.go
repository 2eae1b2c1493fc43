package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	redisclient "github.com/angelmondragon/farmlink-backend/pkg/redis"
)

const (
	secretBytes = 32
	separator   = "."
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
	SessionsRevokedKey(userID string) string
}

// Session is one login. The access ID doubles as the JWT jti.
type Session struct {
	AccessID     string
	UserID       uuid.UUID
	Role         enums.UserRole
	RefreshToken string
}

// entry is what Redis holds per session. Only a digest of the refresh
// secret is kept.
type entry struct {
	UserID   uuid.UUID      `json:"user_id"`
	Role     enums.UserRole `json:"role"`
	Digest   string         `json:"secret_sha256"`
	IssuedAt int64          `json:"issued_at"`
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager keeps refresh sessions in Redis and rotates them on refresh.
type Manager struct {
	kv  store
	ttl time.Duration
	now func() time.Time
}

// NewManager requires the refresh TTL to outlive the access token.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(kv store, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if access := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= access {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{kv: kv, ttl: ttl, now: time.Now}, nil
}

func (m *Manager) Start(ctx context.Context, userID uuid.UUID, role enums.UserRole) (Session, error) {
	if userID == uuid.Nil {
		return Session{}, errors.New("user id is required")
	}
	return m.open(ctx, userID, role)
}

// Rotate trades a refresh token for a new session. The stored entry is
// removed with GETDEL, so two concurrent rotations of one token cannot
// both succeed.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (Session, error) {
	accessID, secret, ok := parseToken(refreshToken)
	if !ok {
		return Session{}, ErrInvalidRefreshToken
	}
	key := m.kv.AccessSessionKey(accessID)

	raw, err := m.kv.Get(ctx, key)
	if err != nil {
		return Session{}, missing(err)
	}
	e, ok := decode(raw)
	if !ok || !e.matches(secret) {
		return Session{}, ErrInvalidRefreshToken
	}
	revoked, err := m.revoked(ctx, e)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		_ = m.kv.Del(ctx, key)
		return Session{}, ErrInvalidRefreshToken
	}

	taken, err := m.kv.GetDel(ctx, key)
	if err != nil {
		return Session{}, missing(err)
	}
	if taken != raw {
		return Session{}, ErrInvalidRefreshToken
	}
	return m.open(ctx, e.UserID, e.Role)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errors.New("access id is required")
	}
	return m.kv.Del(ctx, m.kv.AccessSessionKey(accessID))
}

// RevokeAll ends every session the user holds right now, for example after
// a password reset. Sessions started afterwards are unaffected. The cutoff
// lives as long as a refresh session can.
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New("user id is required")
	}
	cutoff := strconv.FormatInt(m.now().UnixNano(), 10)
	return m.kv.Set(ctx, m.kv.SessionsRevokedKey(userID.String()), cutoff, m.ttl)
}

// HasSession reports whether accessID has not been revoked or rotated away.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errors.New("access id is required")
	}
	raw, err := m.kv.Get(ctx, m.kv.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	e, ok := decode(raw)
	if !ok {
		return false, nil
	}
	revoked, err := m.revoked(ctx, e)
	if err != nil {
		return false, err
	}
	return !revoked, nil
}

func (m *Manager) revoked(ctx context.Context, e entry) (bool, error) {
	raw, err := m.kv.Get(ctx, m.kv.SessionsRevokedKey(e.UserID.String()))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("decode revocation cutoff: %w", err)
	}
	return e.IssuedAt <= cutoff, nil
}

func (m *Manager) open(ctx context.Context, userID uuid.UUID, role enums.UserRole) (Session, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generate refresh secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	raw, err := json.Marshal(entry{UserID: userID, Role: role, Digest: digest(secret), IssuedAt: m.now().UnixNano()})
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	accessID := uuid.NewString()
	if err := m.kv.Set(ctx, m.kv.AccessSessionKey(accessID), string(raw), m.ttl); err != nil {
		return Session{}, err
	}
	return Session{
		AccessID:     accessID,
		UserID:       userID,
		Role:         role,
		RefreshToken: accessID + separator + secret,
	}, nil
}

func (e entry) matches(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(e.Digest), []byte(digest(secret))) == 1
}

func decode(raw string) (entry, bool) {
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Digest == "" {
		return entry{}, false
	}
	return e, true
}

func digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func missing(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}

// parseToken splits "<access uuid>.<secret>".
func parseToken(token string) (accessID, secret string, ok bool) {
	accessID, secret, ok = strings.Cut(strings.TrimSpace(token), separator)
	if !ok || secret == "" {
		return "", "", false
	}
	if _, err := uuid.Parse(accessID); err != nil {
		return "", "", false
	}
	return accessID, secret, true
}
