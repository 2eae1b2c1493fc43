package models

import (
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet holds the current balance of a single user in minor units.
type Wallet struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	BalanceCents int64     `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletTransaction is an append-only ledger row. Exactly one row is written
// per balance change.
type WalletTransaction struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID                   `gorm:"column:user_id;type:uuid;not null"`
	Type              enums.WalletEntryType       `gorm:"column:type;type:wallet_entry_type;not null"`
	TransactionType   enums.WalletTransactionType `gorm:"column:transaction_type;type:wallet_transaction_type;not null"`
	AmountCents       int64                       `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int64                       `gorm:"column:balance_after_cents;not null"`
	RelatedUserID     *uuid.UUID                  `gorm:"column:related_user_id;type:uuid"`
	OrderID           *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	Description       string                      `gorm:"column:description;not null;default:''"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
