package models

import (
	"time"

	dbtypes "github.com/angelmondragon/farmlink-backend/pkg/db/types"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a farmer listing. Quantity is the stock still available for sale.
type Product struct {
	ID                 uuid.UUID             `gorm:"type:uuid;primaryKey"`
	FarmerID           uuid.UUID             `gorm:"column:farmer_id;type:uuid;not null"`
	Name               string                `gorm:"column:name;not null"`
	Category           enums.ProductCategory `gorm:"column:category;type:product_category;not null"`
	Unit               enums.ProductUnit     `gorm:"column:unit;type:product_unit;not null"`
	PriceCents         int64                 `gorm:"column:price_cents;not null"`
	DiscountPriceCents *int64                `gorm:"column:discount_price_cents"`
	Quantity           decimal.Decimal       `gorm:"column:quantity;type:numeric(12,3);not null"`
	Description        *string               `gorm:"column:description"`
	ImageURLs          dbtypes.StringArray   `gorm:"column:image_urls;type:text[];not null;default:'{}'"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt        `gorm:"column:deleted_at;index"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ImageURLs == nil {
		p.ImageURLs = dbtypes.StringArray{}
	}
	return nil
}

// EffectivePriceCents is the unit price a buyer pays: the discount price when
// one is set, otherwise the list price.
func (p Product) EffectivePriceCents() int64 {
	if p.DiscountPriceCents != nil {
		return *p.DiscountPriceCents
	}
	return p.PriceCents
}
