package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// OutboxEvent is a domain event written in the same transaction as the
// change it describes. Rows are never updated except for delivery
// bookkeeping.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"type:uuid;not null"`
	// Payload holds an encoded outbox.PayloadEnvelope.
	Payload   json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`

	// Delivery bookkeeping. A row is pending while both PublishedAt and
	// FailedAt are nil.
	PublishedAt  *time.Time
	FailedAt     *time.Time
	AttemptCount int `gorm:"not null;default:0"`
	LastError    *string
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Pending reports whether the relay should still try to deliver the row.
func (e OutboxEvent) Pending() bool {
	return e.PublishedAt == nil && e.FailedAt == nil
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
