package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

// memoryStore keeps idempotency entries in a map and records their TTLs.
type memoryStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return "mem:" + scope + ":" + id }

var idemUser = uuid.New()

func authedRequest(method, url string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	return req.WithContext(WithPrincipal(req.Context(), Principal{UserID: idemUser, Role: enums.UserRoleCustomer}))
}

func orderRequest(body, key string) *http.Request {
	req := authedRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouteTTL(t *testing.T) {
	cases := []struct {
		method, path string
		guarded      bool
	}{
		{http.MethodPost, "/api/orders", true},
		{http.MethodPost, "/api/orders/", true},
		{http.MethodPost, "/api/wallet/add-money", true},
		{http.MethodPut, "/api/orders/1/accept", false},
		{http.MethodPost, "/api/auth/login", false},
		{http.MethodGet, "/api/orders", false},
	}
	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, tc.path)
		assert.Equal(t, tc.guarded, ok, "%s %s", tc.method, tc.path)
		if ok {
			assert.Equal(t, moneyIdempotencyTTL, ttl)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	ran := false
	h := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { ran = true }))

	rec := serve(h, orderRequest(`{"quantity":"1"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, ran)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	first := serve(h, orderRequest(`{"quantity":"2"}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	again := serve(h, orderRequest(`{"quantity":"2"}`, "abc"))
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true}`, again.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, moneyIdempotencyTTL, ttl, key)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	h := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	serve(h, orderRequest(`{"quantity":"2"}`, "xyz"))

	rec := serve(h, orderRequest(`{"quantity":"3"}`, "xyz"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	serve(h, orderRequest(`{}`, "shared"))

	other := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	other = other.WithContext(WithPrincipal(other.Context(), Principal{UserID: uuid.New(), Role: enums.UserRoleCustomer}))
	other.Header.Set(IdempotencyHeader, "shared")

	rec := serve(h, other)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	var nested *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if nested == nil {
			nested = serve(h, orderRequest(`{"quantity":"1"}`, "dup"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := serve(h, orderRequest(`{"quantity":"1"}`, "dup"))
	assert.Equal(t, http.StatusCreated, outer.Code)
	require.NotNil(t, nested)
	assert.Equal(t, http.StatusConflict, nested.Code)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := serve(h, orderRequest(`{"quantity":"1"}`, "retry"))
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Empty(t, store.data)

	second := serve(h, orderRequest(`{"quantity":"1"}`, "retry"))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	ran := false
	h := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { ran = true }))
	serve(h, authedRequest(http.MethodPut, "/api/orders/1/accept", nil))
	assert.True(t, ran)
}
