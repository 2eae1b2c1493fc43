package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/farmlink-backend/internal/ledger"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

const reconcilePageSize = 200

type walletReconciler interface {
	WalletUserIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*ledger.Reconciliation, error)
}

// ErrWalletDrift marks a wallet whose cached balance differs from its ledger.
type ErrWalletDrift struct {
	UserID       uuid.UUID
	BalanceCents int64
	LedgerCents  int64
}

func (e *ErrWalletDrift) Error() string {
	return fmt.Sprintf("wallet %s drift: balance=%d ledger=%d", e.UserID, e.BalanceCents, e.LedgerCents)
}

type WalletReconcileJobParams struct {
	Logger   *logger.Logger
	Ledger   walletReconciler
	PageSize int
}

func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	size := params.PageSize
	if size <= 0 {
		size = reconcilePageSize
	}
	return &walletReconcileJob{logg: params.Logger, ledger: params.Ledger, pageSize: size}, nil
}

type walletReconcileJob struct {
	logg     *logger.Logger
	ledger   walletReconciler
	pageSize int
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

// Run walks every wallet keyset-style and reports each drifting one. The job
// never repairs balances; drift needs a human.
func (j *walletReconcileJob) Run(ctx context.Context) error {
	var (
		errs    error
		after   = uuid.Nil
		checked int
		drifted int
	)
	for {
		ids, err := j.ledger.WalletUserIDs(ctx, after, j.pageSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets: %w", err))
		}
		for _, id := range ids {
			rec, err := j.ledger.Reconcile(ctx, id)
			checked++
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", id, err))
				continue
			}
			if !rec.Balanced {
				drifted++
				logCtx := j.logg.WithFields(ctx, map[string]any{
					"user_id":       id.String(),
					"balance_cents": rec.BalanceCents,
					"ledger_cents":  rec.LedgerCents,
					"drift_cents":   rec.DriftCents,
				})
				drift := &ErrWalletDrift{UserID: id, BalanceCents: rec.BalanceCents, LedgerCents: rec.LedgerCents}
				j.logg.Error(logCtx, "wallet balance does not match ledger", drift)
				errs = multierr.Append(errs, drift)
			}
		}
		if len(ids) < j.pageSize {
			break
		}
		after = ids[len(ids)-1]
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"checked": checked, "drifted": drifted}), "wallet reconcile complete")
	return errs
}
