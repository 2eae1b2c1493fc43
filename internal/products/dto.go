package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

// ProductDTO is the product payload returned to clients. Money and quantity
// are decimal strings.
type ProductDTO struct {
	ID            uuid.UUID `json:"id"`
	FarmerID      uuid.UUID `json:"farmer_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Unit          string    `json:"unit"`
	Price         string    `json:"price"`
	DiscountPrice *string   `json:"discount_price,omitempty"`
	Quantity      string    `json:"quantity"`
	Description   *string   `json:"description,omitempty"`
	ImageURLs     []string  `json:"image_urls"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewProductDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		FarmerID:    p.FarmerID,
		Name:        p.Name,
		Category:    string(p.Category),
		Unit:        string(p.Unit),
		Price:       money.Format(p.PriceCents),
		Quantity:    p.Quantity.String(),
		Description: p.Description,
		ImageURLs:   append([]string{}, p.ImageURLs...),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.DiscountPriceCents != nil {
		discount := money.Format(*p.DiscountPriceCents)
		dto.DiscountPrice = &discount
	}
	return dto
}

func newProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, len(rows))
	for i := range rows {
		out[i] = NewProductDTO(&rows[i])
	}
	return out
}
