package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string            { return string(n) }
func (namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	r := NewRegistry(namedJob("a"), nil)
	require.NoError(t, r.Register(namedJob("b")))
	require.NoError(t, r.Register(nil))

	assert.Equal(t, []string{"a", "b"}, r.Names())

	jobs := r.Jobs()
	jobs[0] = nil
	assert.NotNil(t, r.Jobs()[0], "Jobs must return a copy")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry(namedJob("order-expiry"))
	assert.EqualError(t, r.Register(namedJob("order-expiry")), `cron job "order-expiry" already registered`)
	assert.Panics(t, func() { NewRegistry(namedJob("x"), namedJob("x")) })
}
