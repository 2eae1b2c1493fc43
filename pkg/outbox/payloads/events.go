package payloads

import (
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted once per order line placed by a buyer.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	ProductID        uuid.UUID           `json:"product_id"`
	BuyerID          uuid.UUID           `json:"buyer_id"`
	FarmerID         uuid.UUID           `json:"farmer_id"`
	Quantity         string              `json:"quantity"`
	UnitPriceCents   int64               `json:"unit_price_cents"`
	TotalAmountCents int64               `json:"total_amount_cents"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
}

// OrderDecidedEvent is emitted when a farmer accepts or rejects an order.
type OrderDecidedEvent struct {
	OrderID  uuid.UUID           `json:"order_id"`
	BuyerID  uuid.UUID           `json:"buyer_id"`
	FarmerID uuid.UUID           `json:"farmer_id"`
	Decision enums.OrderDecision `json:"decision"`
	Status   enums.OrderStatus   `json:"status"`
	Reason   string              `json:"reason,omitempty"`
}

// OrderStatusChangedEvent covers transitions outside the farmer decision:
// shipping, delivery and expiry.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	BuyerID   uuid.UUID         `json:"buyer_id"`
	FarmerID  uuid.UUID         `json:"farmer_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	Reason    string            `json:"reason,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

// WalletTransactionRecordedEvent mirrors a ledger row.
type WalletTransactionRecordedEvent struct {
	TransactionID     uuid.UUID                   `json:"transaction_id"`
	UserID            uuid.UUID                   `json:"user_id"`
	Type              enums.WalletEntryType       `json:"type"`
	TransactionType   enums.WalletTransactionType `json:"transaction_type"`
	AmountCents       int64                       `json:"amount_cents"`
	BalanceAfterCents int64                       `json:"balance_after_cents"`
	RelatedUserID     *uuid.UUID                  `json:"related_user_id,omitempty"`
	OrderID           *uuid.UUID                  `json:"order_id,omitempty"`
}

// PasswordResetRequestedEvent asks the notification channel to deliver a
// reset code. Code is short-lived and single use; consumers must not log it.
type PasswordResetRequestedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
