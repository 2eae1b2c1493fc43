package outbox_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
)

type walletData struct {
	AmountCents int64 `json:"amount_cents"`
}

func TestEmitStoresSealedEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)
	userID := uuid.New()

	err := svc.Emit(context.Background(), conn, outbox.DomainEvent{
		EventType:     enums.EventWalletTransactionRecorded,
		AggregateType: enums.AggregateWallet,
		AggregateID:   userID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer},
		Data:          walletData{AmountCents: 6000},
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, userID, rows[0].AggregateID)

	env, err := outbox.OpenEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, outbox.EnvelopeVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	require.NotNil(t, env.Actor)
	assert.Equal(t, enums.UserRoleCustomer, env.Actor.Role)
	assert.JSONEq(t, `{"amount_cents":6000}`, string(env.Data))
}

func TestEmitValidatesEvent(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	ctx := context.Background()
	valid := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
	}

	assert.Error(t, svc.Emit(ctx, nil, valid))

	bad := valid
	bad.EventType = "order_archived"
	assert.Error(t, svc.Emit(ctx, conn, bad))

	bad = valid
	bad.AggregateID = uuid.Nil
	assert.Error(t, svc.Emit(ctx, conn, bad))

	bad = valid
	bad.Data = func() {}
	assert.Error(t, svc.Emit(ctx, conn, bad))
}

func TestOpenEnvelopeRejectsEmptyData(t *testing.T) {
	_, err := outbox.OpenEnvelope([]byte(`{"version":1,"eventId":"x","data":null}`))
	assert.ErrorIs(t, err, outbox.ErrEmptyPayload)

	_, err = outbox.OpenEnvelope([]byte(`{"version":0,"data":{}}`))
	assert.Error(t, err)
}

func TestRetentionDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	for range 2 {
		require.NoError(t, repo.Insert(conn, models.OutboxEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
		}))
	}
	rows, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, repo.MarkPublished(ctx, rows[0].ID, now.Add(-48*time.Hour)))

	deleted, err := repo.DeletePublishedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	left, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestMarkFailedParksTerminalRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		EventType:     enums.EventOrderDecided,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
	}))
	rows, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	require.NoError(t, repo.MarkFailed(ctx, id, errors.New("broker down"), false, time.Now()))
	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	assert.True(t, row.Pending())
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "broker down", *row.LastError)

	require.NoError(t, repo.MarkFailed(ctx, id, errors.New(strings.Repeat("x", 4000)), true, time.Now()))
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	assert.False(t, row.Pending())
	assert.Equal(t, 2, row.AttemptCount)
	assert.Len(t, *row.LastError, 1024)

	left, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}
