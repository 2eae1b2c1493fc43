package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// WalletDTO is the balance payload.
type WalletDTO struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionDTO is one ledger row as returned to the owner.
type TransactionDTO struct {
	ID              uuid.UUID                   `json:"id"`
	Type            enums.WalletEntryType       `json:"type"`
	TransactionType enums.WalletTransactionType `json:"transaction_type"`
	Amount          string                      `json:"amount"`
	BalanceAfter    string                      `json:"balance_after"`
	RelatedUserID   *uuid.UUID                  `json:"related_user_id,omitempty"`
	OrderID         *uuid.UUID                  `json:"order_id,omitempty"`
	Description     string                      `json:"description"`
	CreatedAt       time.Time                   `json:"created_at"`
}

// SummaryDTO renders Summary with decimal amounts.
type SummaryDTO struct {
	Balance          string `json:"balance"`
	TotalCredit      string `json:"total_credit"`
	TotalDebit       string `json:"total_debit"`
	TransactionCount int64  `json:"transaction_count"`
}

func NewWalletDTO(w *models.Wallet) WalletDTO {
	return WalletDTO{UserID: w.UserID, Balance: money.Format(w.BalanceCents), UpdatedAt: w.UpdatedAt}
}

func NewTransactionDTO(t *models.WalletTransaction) TransactionDTO {
	return TransactionDTO{
		ID:              t.ID,
		Type:            t.Type,
		TransactionType: t.TransactionType,
		Amount:          money.Format(t.AmountCents),
		BalanceAfter:    money.Format(t.BalanceAfterCents),
		RelatedUserID:   t.RelatedUserID,
		OrderID:         t.OrderID,
		Description:     t.Description,
		CreatedAt:       t.CreatedAt,
	}
}

func NewSummaryDTO(s *Summary) SummaryDTO {
	return SummaryDTO{
		Balance:          money.Format(s.BalanceCents),
		TotalCredit:      money.Format(s.TotalCreditCents),
		TotalDebit:       money.Format(s.TotalDebitCents),
		TransactionCount: s.TransactionCount,
	}
}

// NewTransactionPage converts a page of rows, keeping its cursor fields.
func NewTransactionPage(page pagination.Page[models.WalletTransaction]) pagination.Page[TransactionDTO] {
	items := make([]TransactionDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, NewTransactionDTO(&page.Items[i]))
	}
	return pagination.Page[TransactionDTO]{
		Items:   items,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.HasMore,
	}
}
