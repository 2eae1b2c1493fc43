package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// MovementRecorder observes committed-to-be ledger rows, typically metrics.
type MovementRecorder interface {
	WalletMovement(entryType, transactionType string, amountCents int64)
}

// Service is the wallet ledger: the only writer of wallet balances.
type Service interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, input MovementInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, input MovementInput) (*models.WalletTransaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params ListParams) (pagination.Page[models.WalletTransaction], error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	TopUp(ctx context.Context, input TopUpInput) (*models.WalletTransaction, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error)
	WalletUserIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

// MovementInput describes one credit or debit.
type MovementInput struct {
	UserID          uuid.UUID
	AmountCents     int64
	TransactionType enums.WalletTransactionType
	RelatedUserID   *uuid.UUID
	OrderID         *uuid.UUID
	Description     string
}

// ListParams drives ListTransactions. Type accepts either an entry direction
// (CREDIT, DEBIT) or a transaction type (TOPUP, REFUND, ...).
type ListParams struct {
	Limit  int
	Offset int
	Type   string
}

// TopUpInput funds a wallet from an external instrument.
type TopUpInput struct {
	UserID      uuid.UUID
	AmountCents int64
	Method      enums.TopUpMethod
}

// Summary mirrors Totals with the current balance.
type Summary struct {
	BalanceCents     int64 `json:"balance_cents"`
	TotalCreditCents int64 `json:"total_credit_cents"`
	TotalDebitCents  int64 `json:"total_debit_cents"`
	TransactionCount int64 `json:"transaction_count"`
}

// Reconciliation compares the stored balance with the ledger.
type Reconciliation struct {
	UserID       uuid.UUID `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	LedgerCents  int64     `json:"ledger_cents"`
	DriftCents   int64     `json:"drift_cents"`
	Balanced     bool      `json:"balanced"`
}

type service struct {
	repo          Repository
	tx            txRunner
	outbox        outboxPublisher
	recorder      MovementRecorder
	maxTopUpCents int64
}

// NewService wires the ledger. recorder may be nil.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, cfg config.WalletConfig, recorder MovementRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	maxTopUp, err := cfg.MaxTopUpCents()
	if err != nil {
		return nil, err
	}
	return &service{
		repo:          repo,
		tx:            tx,
		outbox:        outbox,
		recorder:      recorder,
		maxTopUpCents: maxTopUp,
	}, nil
}

// GetBalance returns the wallet, creating an empty one on first access.
func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	var wallet *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.EnsureWallet(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
		}
		found, err := repo.GetWallet(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}
		wallet = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *service) Credit(ctx context.Context, input MovementInput) (*models.WalletTransaction, error) {
	return s.inOwnTx(ctx, input, s.CreditTx)
}

func (s *service) Debit(ctx context.Context, input MovementInput) (*models.WalletTransaction, error) {
	return s.inOwnTx(ctx, input, s.DebitTx)
}

func (s *service) inOwnTx(ctx context.Context, input MovementInput, fn func(context.Context, *gorm.DB, MovementInput) (*models.WalletTransaction, error)) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := fn(ctx, tx, input)
		if err != nil {
			return err
		}
		txn = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreditTx records a credit inside the caller's transaction.
func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error) {
	return s.apply(ctx, tx, enums.WalletEntryCredit, input)
}

// DebitTx records a debit inside the caller's transaction. The balance never
// goes negative: an uncovered debit fails with INSUFFICIENT_FUNDS and writes
// nothing.
func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error) {
	return s.apply(ctx, tx, enums.WalletEntryDebit, input)
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, entry enums.WalletEntryType, input MovementInput) (*models.WalletTransaction, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	if err := repo.EnsureWallet(ctx, input.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}

	delta := input.AmountCents
	if entry == enums.WalletEntryDebit {
		delta = -delta
	}
	applied, err := repo.AdjustBalance(ctx, input.UserID, delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}

	wallet, err := repo.GetWallet(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if !applied {
		return nil, insufficientFunds(wallet.BalanceCents, input.AmountCents)
	}

	txn := &models.WalletTransaction{
		UserID:            input.UserID,
		Type:              entry,
		TransactionType:   input.TransactionType,
		AmountCents:       input.AmountCents,
		BalanceAfterCents: wallet.BalanceCents,
		RelatedUserID:     input.RelatedUserID,
		OrderID:           input.OrderID,
		Description:       strings.TrimSpace(input.Description),
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record wallet transaction")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWalletTransactionRecorded,
		AggregateType: enums.AggregateWallet,
		AggregateID:   input.UserID,
		Actor:         &outbox.ActorRef{UserID: input.UserID},
		Data: payloads.WalletTransactionRecordedEvent{
			TransactionID:     txn.ID,
			UserID:            txn.UserID,
			Type:              txn.Type,
			TransactionType:   txn.TransactionType,
			AmountCents:       txn.AmountCents,
			BalanceAfterCents: txn.BalanceAfterCents,
			RelatedUserID:     txn.RelatedUserID,
			OrderID:           txn.OrderID,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit wallet event")
	}

	if s.recorder != nil {
		s.recorder.WalletMovement(string(entry), string(input.TransactionType), input.AmountCents)
	}
	return txn, nil
}

func validateMovement(input MovementInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be greater than zero").
			WithDetails(map[string]any{"amount": money.Format(input.AmountCents)})
	}
	if !input.TransactionType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.TransactionType))
	}
	return nil
}

func insufficientFunds(balance, amount int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
		WithDetails(map[string]any{
			"balance":   money.Format(balance),
			"required":  money.Format(amount),
			"shortfall": money.Format(amount - balance),
		})
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params ListParams) (pagination.Page[models.WalletTransaction], error) {
	page := pagination.Params{Limit: params.Limit, Offset: params.Offset}.Normalize(defaultTransactionLimit, maxTransactionLimit)
	filter := TransactionFilter{Limit: page.LimitWithBuffer(), Offset: page.Offset}

	if raw := strings.ToUpper(strings.TrimSpace(params.Type)); raw != "" {
		if entry, err := enums.ParseWalletEntryType(raw); err == nil {
			filter.Type = &entry
		} else if txType, err := enums.ParseWalletTransactionType(raw); err == nil {
			filter.TransactionType = &txType
		} else {
			return pagination.Page[models.WalletTransaction]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type filter %q", params.Type))
		}
	}

	rows, err := s.repo.ListTransactions(ctx, userID, filter)
	if err != nil {
		return pagination.Page[models.WalletTransaction]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	return pagination.BuildPage(rows, page), nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	if _, err := s.GetBalance(ctx, userID); err != nil {
		return nil, err
	}
	snap, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet transactions")
	}
	return &Summary{
		BalanceCents:     snap.BalanceCents,
		TotalCreditCents: snap.TotalCreditCents,
		TotalDebitCents:  snap.TotalDebitCents,
		TransactionCount: snap.TransactionCount,
	}, nil
}

// TopUp credits money arriving from an external payment instrument. The
// gateway round-trip is outside this service.
func (s *service) TopUp(ctx context.Context, input TopUpInput) (*models.WalletTransaction, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}
	if s.maxTopUpCents > 0 && input.AmountCents > s.maxTopUpCents {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount exceeds the top-up limit").
			WithDetails(map[string]any{"max": money.Format(s.maxTopUpCents)})
	}
	return s.Credit(ctx, MovementInput{
		UserID:          input.UserID,
		AmountCents:     input.AmountCents,
		TransactionType: enums.WalletTxTopUp,
		Description:     fmt.Sprintf("Wallet top-up via %s", input.Method),
	})
}

// Reconcile checks balance == sum(CREDIT) - sum(DEBIT) for one wallet. The
// balance and sums come from a single statement so a movement committing
// mid-check cannot show up as drift.
func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	snap, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet snapshot")
	}
	ledger := snap.TotalCreditCents - snap.TotalDebitCents
	return &Reconciliation{
		UserID:       userID,
		BalanceCents: snap.BalanceCents,
		LedgerCents:  ledger,
		DriftCents:   snap.BalanceCents - ledger,
		Balanced:     snap.BalanceCents == ledger,
	}, nil
}

func (s *service) WalletUserIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = maxTransactionLimit
	}
	return s.repo.ListWalletUserIDs(ctx, after, limit)
}
