package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

// ProductSummary is the product snapshot shown next to an order.
type ProductSummary struct {
	ID       uuid.UUID             `json:"id"`
	Name     string                `json:"name"`
	Category enums.ProductCategory `json:"category"`
	Unit     enums.ProductUnit     `json:"unit"`
}

// PartySummary exposes the counterparty's contact details.
type PartySummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    *string   `json:"phone,omitempty"`
}

// OrderDTO is the API shape of an order. Money is rendered with two decimals.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	ProductID       uuid.UUID           `json:"product_id"`
	BuyerID         uuid.UUID           `json:"buyer_id"`
	FarmerID        uuid.UUID           `json:"farmer_id"`
	Product         *ProductSummary     `json:"product,omitempty"`
	Buyer           *PartySummary       `json:"buyer,omitempty"`
	Farmer          *PartySummary       `json:"farmer,omitempty"`
	Quantity        string              `json:"quantity"`
	UnitPrice       string              `json:"unit_price"`
	TotalAmount     string              `json:"total_amount"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Status          enums.OrderStatus   `json:"status"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		ProductID:       order.ProductID,
		BuyerID:         order.BuyerID,
		FarmerID:        order.FarmerID,
		Quantity:        order.Quantity.String(),
		UnitPrice:       money.Format(order.UnitPriceCents),
		TotalAmount:     money.Format(order.TotalAmountCents),
		PaymentMethod:   order.PaymentMethod,
		Status:          order.Status,
		RejectionReason: order.RejectionReason,
		DecidedAt:       order.DecidedAt,
		DeliveredAt:     order.DeliveredAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if order.Product != nil {
		dto.Product = &ProductSummary{
			ID:       order.Product.ID,
			Name:     order.Product.Name,
			Category: order.Product.Category,
			Unit:     order.Product.Unit,
		}
	}
	dto.Buyer = partySummary(order.Buyer)
	dto.Farmer = partySummary(order.Farmer)
	return dto
}

func partySummary(user *models.User) *PartySummary {
	if user == nil {
		return nil
	}
	return &PartySummary{ID: user.ID, FullName: user.Name, Phone: user.Phone}
}

func newOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderDTO(&rows[i]))
	}
	return out
}
