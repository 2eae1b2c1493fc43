package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/farmlink-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	moneyIdempotencyTTL   = 7 * 24 * time.Hour
	pendingIdempotencyTTL = 2 * time.Minute
	replayedHeader        = "Idempotent-Replayed"
)

// guardedRoutes move money, so a replayed request must never run twice.
var guardedRoutes = map[string]time.Duration{
	http.MethodPost + " /api/orders":           moneyIdempotencyTTL,
	http.MethodPost + " /api/wallet/add-money": moneyIdempotencyTTL,
}

func routeTTL(method, path string) (time.Duration, bool) {
	ttl, ok := guardedRoutes[method+" "+strings.TrimSuffix(path, "/")]
	return ttl, ok
}

// savedResponse is what lives under an idempotency key. A pending entry only
// carries the request fingerprint.
type savedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

var (
	errKeyInFlight = pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still in progress")
	errKeyReused   = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

// Idempotency replays the stored response when a request is retried with the
// same Idempotency-Key. The key is claimed before the handler runs, so two
// concurrent retries cannot both execute. 5xx responses release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if err := g.serve(w, r, next, ttl); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

// serve returns an error only when nothing has been written yet.
func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) error {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if clientKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintOf(body)
	key := g.store.IdempotencyKey(scopeOf(r), clientKey)

	prior, err := g.lookup(ctx, key)
	if err != nil {
		return err
	}
	if prior != nil {
		return replay(w, prior, fingerprint)
	}

	claimed, err := g.store.SetNX(ctx, key, encodeSaved(savedResponse{Pending: true, Fingerprint: fingerprint}), pendingIdempotencyTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !claimed {
		return errKeyInFlight
	}

	var captured bytes.Buffer
	ww := wrap(w, r)
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	g.settle(ctx, key, ttl, savedResponse{
		Fingerprint: fingerprint,
		Status:      statusOf(ww),
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
	})
	return nil
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*savedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == "":
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var saved savedResponse
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &saved, nil
}

// settle replaces the claim with the final response, or drops it after a
// server error so the client may retry.
func (g *idempotencyGuard) settle(ctx context.Context, key string, ttl time.Duration, res savedResponse) {
	var err error
	if res.Status >= http.StatusInternalServerError {
		err = g.store.Del(ctx, key)
	} else {
		err = g.store.Set(ctx, key, encodeSaved(res), ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(g.logg.WithField(ctx, "idempotency_key", key), "idempotency.settle_failed", err)
	}
}

func replay(w http.ResponseWriter, saved *savedResponse, fingerprint string) error {
	switch {
	case saved.Fingerprint != fingerprint:
		return errKeyReused
	case saved.Pending:
		return errKeyInFlight
	}
	if saved.ContentType != "" {
		w.Header().Set("Content-Type", saved.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(saved.Status)
	_, _ = w.Write(saved.Body)
	return nil
}

func encodeSaved(res savedResponse) string {
	raw, _ := json.Marshal(res)
	return string(raw)
}

// scopeOf keys records per caller so two users cannot collide on a key.
func scopeOf(r *http.Request) string {
	return UserIDFromContext(r.Context()).String() + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
