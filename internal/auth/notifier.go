package auth

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/auth/reset"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxNotifier hands reset codes to the mail channel through the outbox.
// The relay publishes them on the notifications topic.
type OutboxNotifier struct {
	tx     txRunner
	outbox outbox.Emitter
}

func NewOutboxNotifier(tx txRunner, emitter outbox.Emitter) (*OutboxNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	return &OutboxNotifier{tx: tx, outbox: emitter}, nil
}

func (n *OutboxNotifier) PasswordResetRequested(ctx context.Context, user *models.User, code reset.Code) error {
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPasswordResetRequested,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: user.Role},
			Data: payloads.PasswordResetRequestedEvent{
				UserID:    user.ID,
				Email:     user.Email,
				Name:      user.Name,
				Code:      code.Value,
				ExpiresAt: code.ExpiresAt,
			},
		})
	})
}
