package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// rateLimitBodyCap bounds how much of the body is read to find the email.
const rateLimitBodyCap = 64 << 10

const tooManyAttempts = "Too many attempts. Please wait a moment and try again."

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one auth surface per client IP and per email.
// A zero limit disables that dimension.
type RateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.EmailLimit > 0)
}

func (p RateLimitPolicy) name() string {
	if n := strings.ToLower(strings.TrimSpace(p.Name)); n != "" {
		return n
	}
	return "auth"
}

type throttle struct {
	policy  RateLimitPolicy
	limiter rateLimiter
	logg    *logger.Logger
}

// AuthRateLimit counts attempts per client IP and per email address. Emails
// are hashed before they become part of a Redis key. Blocked callers get a
// 429 with Retry-After set to the window length.
func AuthRateLimit(policy RateLimitPolicy, limiter rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	t := &throttle{policy: policy, limiter: limiter, logg: logg}
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// admit writes the response itself whenever it returns false.
func (t *throttle) admit(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" && !t.allow(ctx, w, "ip", ip, t.policy.IPLimit) {
		return false
	}
	if t.policy.EmailLimit <= 0 {
		return true
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, rateLimitBodyCap))
	if err != nil {
		responses.WriteError(ctx, t.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	email := emailOf(body)
	if email == "" {
		return true
	}
	return t.allow(ctx, w, "email", sha256Hex(email), t.policy.EmailLimit)
}

func (t *throttle) allow(ctx context.Context, w http.ResponseWriter, dimension, subject string, limit int) bool {
	if limit <= 0 {
		return true
	}
	scope := "auth:" + t.policy.name() + ":" + dimension + ":" + subject
	ok, attempts, err := t.limiter.FixedWindowAllow(ctx, scope, int64(limit), t.policy.Window)
	if err != nil {
		responses.WriteError(ctx, t.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if ok {
		return true
	}

	t.logg.Warn(t.logg.WithFields(ctx, map[string]any{
		"policy":         t.policy.name(),
		"dimension":      dimension,
		"attempts":       attempts,
		"limit":          limit,
		"window_seconds": int(t.policy.Window.Seconds()),
	}), "auth.rate_limited")
	w.Header().Set("Retry-After", strconv.Itoa(int(t.policy.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, tooManyAttempts))
	return false
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}

func emailOf(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
