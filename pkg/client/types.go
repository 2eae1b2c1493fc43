package client

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Page mirrors the server's offset page.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
	Role  string    `json:"role"`
}

type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	User         User      `json:"user"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Product struct {
	ID            uuid.UUID        `json:"id"`
	FarmerID      uuid.UUID        `json:"farmer_id"`
	Name          string           `json:"name"`
	Category      string           `json:"category"`
	Unit          string           `json:"unit"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Description   *string          `json:"description,omitempty"`
	ImageURLs     []string         `json:"image_urls"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ProductQuery filters the catalog.
type ProductQuery struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// ProductInput creates or partially updates a listing; nil fields are omitted.
type ProductInput struct {
	Name          *string          `json:"name,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Unit          *string          `json:"unit,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	ClearDiscount bool             `json:"clear_discount,omitempty"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	Description   *string          `json:"description,omitempty"`
	ImageURLs     []string         `json:"image_urls,omitempty"`
}

type CreateOrderRequest struct {
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	PaymentMethod string          `json:"payment_method"`
}

type OrderParty struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    *string   `json:"phone,omitempty"`
}

type OrderProduct struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Unit     string    `json:"unit"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	FarmerID        uuid.UUID       `json:"farmer_id"`
	Product         *OrderProduct   `json:"product,omitempty"`
	Buyer           *OrderParty     `json:"buyer,omitempty"`
	Farmer          *OrderParty     `json:"farmer,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderQuery filters order lists. Date (YYYY-MM-DD) is honored on the buyer list only.
type OrderQuery struct {
	Status string
	Date   string
	Limit  int
	Offset int
}

type Wallet struct {
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type WalletTransaction struct {
	ID              uuid.UUID       `json:"id"`
	Type            string          `json:"type"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	RelatedUserID   *uuid.UUID      `json:"related_user_id,omitempty"`
	OrderID         *uuid.UUID      `json:"order_id,omitempty"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

type WalletSummary struct {
	Balance          decimal.Decimal `json:"balance"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	TransactionCount int64           `json:"transaction_count"`
}

// TransactionQuery filters the wallet history. Type accepts CREDIT/DEBIT or a
// transaction type.
type TransactionQuery struct {
	Type   string
	Limit  int
	Offset int
}

type AddMoneyRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}
