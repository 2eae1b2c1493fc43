package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
)

type recordedMovement struct {
	entry, txType string
	cents         int64
}

type fakeRecorder struct {
	movements []recordedMovement
}

func (f *fakeRecorder) WalletMovement(entry, txType string, cents int64) {
	f.movements = append(f.movements, recordedMovement{entry, txType, cents})
}

type ledgerFixture struct {
	svc      Service
	client   *db.Client
	conn     *gorm.DB
	recorder *fakeRecorder
}

func newLedgerFixture(t *testing.T, cfg config.WalletConfig) ledgerFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	recorder := &fakeRecorder{}
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(NewRepository(conn), client, emitter, cfg, recorder)
	require.NoError(t, err)
	return ledgerFixture{svc: svc, client: client, conn: conn, recorder: recorder}
}

func (f ledgerFixture) fund(t *testing.T, userID uuid.UUID, cents int64) {
	t.Helper()
	_, err := f.svc.Credit(context.Background(), MovementInput{
		UserID:          userID,
		AmountCents:     cents,
		TransactionType: enums.WalletTxTopUp,
		Description:     "seed",
	})
	require.NoError(t, err)
}

func TestGetBalanceCreatesEmptyWallet(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	userID := uuid.New()

	wallet, err := f.svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, wallet.UserID)
	assert.Zero(t, wallet.BalanceCents)

	again, err := f.svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, again.BalanceCents)

	var count int64
	require.NoError(t, f.conn.Model(&models.Wallet{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreditAndDebitKeepLedgerBalanced(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	buyer := uuid.New()
	farmer := uuid.New()

	f.fund(t, buyer, 10000)
	debit, err := f.svc.Debit(ctx, MovementInput{
		UserID:          buyer,
		AmountCents:     6000,
		TransactionType: enums.WalletTxOrderPayment,
		RelatedUserID:   &farmer,
		Description:     "Payment for Tomatoes",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.WalletEntryDebit, debit.Type)
	assert.EqualValues(t, 4000, debit.BalanceAfterCents)
	require.NotNil(t, debit.RelatedUserID)
	assert.Equal(t, farmer, *debit.RelatedUserID)

	wallet, err := f.svc.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 4000, wallet.BalanceCents)

	rec, err := f.svc.Reconcile(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.EqualValues(t, 4000, rec.LedgerCents)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventWalletTransactionRecorded).Count(&events).Error)
	assert.EqualValues(t, 2, events)

	require.Len(t, f.recorder.movements, 2)
	assert.Equal(t, recordedMovement{"DEBIT", "ORDER_PAYMENT", 6000}, f.recorder.movements[1])
}

func TestDebitOverdraftLeavesWalletUntouched(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	buyer := uuid.New()
	f.fund(t, buyer, 2000)

	_, err := f.svc.Debit(ctx, MovementInput{
		UserID:          buyer,
		AmountCents:     6000,
		TransactionType: enums.WalletTxOrderPayment,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "40.00", details["shortfall"])

	wallet, err := f.svc.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 2000, wallet.BalanceCents)

	page, err := f.svc.ListTransactions(ctx, buyer, ListParams{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestMovementRejectsNonPositiveAmounts(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	for _, amount := range []int64{0, -500} {
		_, err := f.svc.Credit(context.Background(), MovementInput{
			UserID:          uuid.New(),
			AmountCents:     amount,
			TransactionType: enums.WalletTxRefund,
		})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidAmount), "amount %d", amount)
	}
}

func TestDebitTxRollsBackWithCaller(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	buyer := uuid.New()
	f.fund(t, buyer, 5000)

	boom := errors.New("order insert failed")
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := f.svc.DebitTx(ctx, tx, MovementInput{
			UserID:          buyer,
			AmountCents:     3000,
			TransactionType: enums.WalletTxOrderPayment,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	wallet, err := f.svc.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, wallet.BalanceCents)

	rec, err := f.svc.Reconcile(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestReconcileReportsDrift(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	user := uuid.New()
	f.fund(t, user, 5000)

	require.NoError(t, f.conn.Model(&models.Wallet{}).Where("user_id = ?", user).
		Update("balance_cents", 5300).Error)

	rec, err := f.svc.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.False(t, rec.Balanced)
	assert.EqualValues(t, 5300, rec.BalanceCents)
	assert.EqualValues(t, 5000, rec.LedgerCents)
	assert.EqualValues(t, 300, rec.DriftCents)

	_, err = f.svc.Reconcile(ctx, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	buyer := uuid.New()
	f.fund(t, buyer, 5000)

	const attempts = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		refusals int
		other    []error
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Debit(ctx, MovementInput{
				UserID:          buyer,
				AmountCents:     1000,
				TransactionType: enums.WalletTxOrderPayment,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds):
				refusals++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 5, ok)
	assert.Equal(t, attempts-5, refusals)

	wallet, err := f.svc.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.Zero(t, wallet.BalanceCents)

	rec, err := f.svc.Reconcile(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestListTransactionsPaginatesAndFilters(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	user := uuid.New()

	f.fund(t, user, 1000)
	f.fund(t, user, 2000)
	_, err := f.svc.Debit(ctx, MovementInput{UserID: user, AmountCents: 500, TransactionType: enums.WalletTxOrderPayment})
	require.NoError(t, err)

	page, err := f.svc.ListTransactions(ctx, user, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, enums.WalletEntryDebit, page.Items[0].Type, "most recent first")

	next, err := f.svc.ListTransactions(ctx, user, ListParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.False(t, next.HasMore)
	assert.EqualValues(t, 1000, next.Items[0].AmountCents)

	credits, err := f.svc.ListTransactions(ctx, user, ListParams{Type: "credit"})
	require.NoError(t, err)
	assert.Len(t, credits.Items, 2)

	payments, err := f.svc.ListTransactions(ctx, user, ListParams{Type: "ORDER_PAYMENT"})
	require.NoError(t, err)
	assert.Len(t, payments.Items, 1)
	assert.Equal(t, defaultTransactionLimit, payments.Limit)

	_, err = f.svc.ListTransactions(ctx, user, ListParams{Type: "BONUS"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSummaryTotals(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	user := uuid.New()
	f.fund(t, user, 7000)
	_, err := f.svc.Debit(ctx, MovementInput{UserID: user, AmountCents: 2500, TransactionType: enums.WalletTxOrderPayment})
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		BalanceCents:     4500,
		TotalCreditCents: 7000,
		TotalDebitCents:  2500,
		TransactionCount: 2,
	}, *summary)
}

func TestTopUpAppliesCapAndMethod(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{MaxTopUp: "500.00"})
	ctx := context.Background()
	user := uuid.New()

	txn, err := f.svc.TopUp(ctx, TopUpInput{UserID: user, AmountCents: 25000, Method: enums.TopUpMethodCard})
	require.NoError(t, err)
	assert.Equal(t, enums.WalletTxTopUp, txn.TransactionType)
	assert.Equal(t, "Wallet top-up via CARD", txn.Description)

	_, err = f.svc.TopUp(ctx, TopUpInput{UserID: user, AmountCents: 50001, Method: enums.TopUpMethodUPI})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidAmount))

	_, err = f.svc.TopUp(ctx, TopUpInput{UserID: user, AmountCents: 100, Method: "CASH"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestWalletUserIDsPages(t *testing.T) {
	f := newLedgerFixture(t, config.WalletConfig{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.GetBalance(ctx, uuid.New())
		require.NoError(t, err)
	}

	first, err := f.svc.WalletUserIDs(ctx, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	rest, err := f.svc.WalletUserIDs(ctx, first[1], 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, config.WalletConfig{}, nil)
	assert.Error(t, err)
}
