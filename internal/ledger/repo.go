package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// ErrWalletNotFound is returned by GetWallet when no row exists.
var ErrWalletNotFound = errors.New("wallet not found")

// TransactionFilter narrows ListTransactions. Both filters are optional.
type TransactionFilter struct {
	Type            *enums.WalletEntryType
	TransactionType *enums.WalletTransactionType
	Limit           int
	Offset          int
}

// Snapshot is a wallet balance and its ledger aggregates read by one
// statement, so both sides see the same committed state.
type Snapshot struct {
	BalanceCents     int64 `gorm:"column:balance_cents"`
	TotalCreditCents int64 `gorm:"column:total_credit_cents"`
	TotalDebitCents  int64 `gorm:"column:total_debit_cents"`
	TransactionCount int64 `gorm:"column:transaction_count"`
}

// Repository persists wallets and their append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureWallet(ctx context.Context, userID uuid.UUID) error
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// AdjustBalance adds delta to the balance. Negative deltas only apply
	// when the balance covers them; the bool reports whether a row changed.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (bool, error)
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]models.WalletTransaction, error)
	// Snapshot returns ErrWalletNotFound when no wallet row exists.
	Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error)
	ListWalletUserIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	wallet := models.Wallet{UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&wallet).Error
}

func (r *repository) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Wallet{}).Where("user_id = ?", userID)
	if delta < 0 {
		query = query.Where("balance_cents >= ?", -delta)
	}
	res := query.Updates(map[string]any{
		"balance_cents": gorm.Expr("balance_cents + ?", delta),
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.TransactionType != nil {
		query = query.Where("transaction_type = ?", *filter.TransactionType)
	}
	var rows []models.WalletTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	res := r.db.WithContext(ctx).Raw(`
		SELECT
			w.balance_cents AS balance_cents,
			COALESCE(SUM(CASE WHEN t.type = ? THEN t.amount_cents ELSE 0 END), 0) AS total_credit_cents,
			COALESCE(SUM(CASE WHEN t.type = ? THEN t.amount_cents ELSE 0 END), 0) AS total_debit_cents,
			COUNT(t.id) AS transaction_count
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.user_id = w.user_id
		WHERE w.user_id = ?
		GROUP BY w.user_id, w.balance_cents`,
		enums.WalletEntryCredit, enums.WalletEntryDebit, userID,
	).Scan(&snap)
	if res.Error != nil {
		return Snapshot{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Snapshot{}, ErrWalletNotFound
	}
	return snap, nil
}

// ListWalletUserIDs pages through wallets by user id for batch jobs.
func (r *repository) ListWalletUserIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.Wallet{}).Order("user_id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("user_id > ?", after)
	}
	var ids []uuid.UUID
	if err := query.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
