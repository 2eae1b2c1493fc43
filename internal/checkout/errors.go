package checkout

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

// InsufficientWalletBalanceError stops checkout before any order is sent.
type InsufficientWalletBalanceError struct {
	BalanceCents   int64
	TotalCents     int64
	ShortfallCents int64
}

func (e *InsufficientWalletBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: need %s more (balance %s, total %s); %s",
		money.Format(e.ShortfallCents), money.Format(e.BalanceCents), money.Format(e.TotalCents), e.TopUpHint())
}

// TopUpHint names the command that covers the shortfall.
func (e *InsufficientWalletBalanceError) TopUpHint() string {
	return "top up with: farmlink wallet add-money " + money.Format(e.ShortfallCents)
}

// Unwrap exposes the typed error so callers can branch on the code.
func (e *InsufficientWalletBalanceError) Unwrap() error {
	return pkgerrors.New(pkgerrors.CodeInsufficientWalletBalance, "insufficient wallet balance").
		WithDetails(map[string]any{
			"balance":   money.Format(e.BalanceCents),
			"total":     money.Format(e.TotalCents),
			"shortfall": money.Format(e.ShortfallCents),
			"hint":      e.TopUpHint(),
		})
}

// LineFailure is one cart line the server refused or never answered.
type LineFailure struct {
	ProductID uuid.UUID
	Name      string
	Err       error
}

// PartialFailureError reports lines that failed. Lines that succeeded stay
// placed; nothing is rolled back.
type PartialFailureError struct {
	Placed int
	Failed []LineFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	return fmt.Sprintf("%d of %d order lines failed: %s",
		len(e.Failed), len(e.Failed)+e.Placed, strings.Join(parts, "; "))
}

// Unwrap returns every line error so errors.Is/As see them.
func (e *PartialFailureError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}
