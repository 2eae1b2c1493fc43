package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{counts: map[string]int64{}}
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func (c *countingLimiter) scopes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.counts))
	for k := range c.counts {
		out = append(out, k)
	}
	return out
}

func credentialsRequest(email, ip string) *http.Request {
	body := fmt.Sprintf(`{"email":%q,"password":"secret"}`, email)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.RemoteAddr = ip + ":5678"
	return req
}

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, IPLimit: 2, EmailLimit: 2}
	var seen string
	h := AuthRateLimit(policy, newCountingLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(raw)
		w.WriteHeader(http.StatusOK)
	}))

	rec := serve(h, credentialsRequest("tester@example.com", "1.2.3.4"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seen, `"email":"tester@example.com"`)
}

func TestAuthRateLimitEmailIsCaseInsensitiveAndHashed(t *testing.T) {
	limiter := newCountingLimiter()
	policy := RateLimitPolicy{Name: "Login", Window: time.Minute, EmailLimit: 2}
	h := AuthRateLimit(policy, limiter, nil)(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, credentialsRequest("blocked@example.com", "1.2.3.4")).Code)
	assert.Equal(t, http.StatusOK, serve(h, credentialsRequest("BLOCKED@example.com", "1.2.3.5")).Code)

	rec := serve(h, credentialsRequest(" blocked@example.com", "1.2.3.6"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)

	want := "auth:login:email:" + sha256Hex("blocked@example.com")
	assert.Equal(t, []string{want}, limiter.scopes())
}

func TestAuthRateLimitPerIP(t *testing.T) {
	policy := RateLimitPolicy{Name: "register", Window: time.Minute, IPLimit: 1}
	h := AuthRateLimit(policy, newCountingLimiter(), nil)(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, credentialsRequest("a@example.com", "5.6.7.8")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, credentialsRequest("b@example.com", "5.6.7.8")).Code)
	assert.Equal(t, http.StatusOK, serve(h, credentialsRequest("c@example.com", "5.6.7.9")).Code)
}

func TestAuthRateLimitLimiterDown(t *testing.T) {
	limiter := newCountingLimiter()
	limiter.err = errors.New("redis down")
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, IPLimit: 5}
	h := AuthRateLimit(policy, limiter, nil)(okHandler())

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, credentialsRequest("a@example.com", "9.9.9.9")).Code)
}

func TestAuthRateLimitDisabled(t *testing.T) {
	limiter := newCountingLimiter()
	h := AuthRateLimit(RateLimitPolicy{IPLimit: 1}, limiter, nil)(okHandler())
	for range 5 {
		assert.Equal(t, http.StatusOK, serve(h, credentialsRequest("a@example.com", "9.9.9.9")).Code)
	}
	assert.Empty(t, limiter.scopes())
}

func TestClientIP(t *testing.T) {
	cases := map[string]struct {
		headers map[string]string
		remote  string
		want    string
	}{
		"forwarded first hop": {headers: map[string]string{"X-Forwarded-For": " 10.0.0.1 , 10.0.0.2"}, remote: "1.1.1.1:80", want: "10.0.0.1"},
		"real ip":             {headers: map[string]string{"X-Real-IP": "10.0.0.3"}, remote: "1.1.1.1:80", want: "10.0.0.3"},
		"socket":              {remote: "1.1.1.1:80", want: "1.1.1.1"},
		"no port":             {remote: "1.1.1.1", want: "1.1.1.1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}
