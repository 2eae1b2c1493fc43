package models

import (
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is one purchased product line. Unit price and total are snapshots
// taken at creation and never change afterwards.
type Order struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ProductID        uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	BuyerID          uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	FarmerID         uuid.UUID           `gorm:"column:farmer_id;type:uuid;not null"`
	Quantity         decimal.Decimal     `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitPriceCents   int64               `gorm:"column:unit_price_cents;not null"`
	TotalAmountCents int64               `gorm:"column:total_amount_cents;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	RejectionReason  *string             `gorm:"column:rejection_reason"`
	DecidedAt        *time.Time          `gorm:"column:decided_at"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Product *Product `gorm:"foreignKey:ProductID;references:ID"`
	Buyer   *User    `gorm:"foreignKey:BuyerID;references:ID"`
	Farmer  *User    `gorm:"foreignKey:FarmerID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
