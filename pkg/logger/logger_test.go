package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestErrorCarriesContextFieldsAndCode(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "order-9")
	log.Error(ctx, "accept failed", pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending"))

	entry := decode(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "order-9", entry["order_id"])
	assert.Equal(t, "STATE_CONFLICT", entry["code"])
	assert.Contains(t, entry, "stack")
}

func TestFieldsDoNotLeakBetweenContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	parent := log.WithField(context.Background(), "user_id", "u-1")
	_ = log.WithField(parent, "order_id", "o-1")
	log.Info(parent, "hello")

	entry := decode(t, buf)
	assert.Equal(t, "u-1", entry["user_id"])
	assert.NotContains(t, entry, "order_id")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf}).Warn(context.Background(), "quiet")
	assert.NotContains(t, decode(t, buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "test", Output: buf, WarnStack: true}).Warn(context.Background(), "loud")
	assert.Contains(t, decode(t, buf), "stack")
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Level: ParseLevel("info"), Output: buf}).Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestNopAndNilContext(t *testing.T) {
	log := Nop()
	ctx := log.WithField(nil, "k", "v")
	require.NotNil(t, ctx)
	log.Error(ctx, "dropped", errors.New("boom"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
