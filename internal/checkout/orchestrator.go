package checkout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/pkg/client"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

const defaultConcurrency = 4

// API is the part of the marketplace client checkout needs.
type API interface {
	WalletBalance(ctx context.Context) (*client.Wallet, error)
	CreateOrder(ctx context.Context, input client.CreateOrderRequest, idempotencyKey string) (*client.Order, error)
}

// Result lists the orders placed, in cart order.
type Result struct {
	Orders     []client.Order
	TotalCents int64
}

// Orchestrator turns a cart into one order per line.
type Orchestrator struct {
	api           API
	logg          *logger.Logger
	concurrency   int
	paymentMethod enums.PaymentMethod
	newKey        func() string
}

type Option func(*Orchestrator)

// WithConcurrency bounds in-flight order requests.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithPaymentMethod(method enums.PaymentMethod) Option {
	return func(o *Orchestrator) {
		if method.IsValid() {
			o.paymentMethod = method
		}
	}
}

// WithKeyFunc overrides Idempotency-Key generation.
func WithKeyFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newKey = fn
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(o *Orchestrator) {
		if logg != nil {
			o.logg = logg
		}
	}
}

func NewOrchestrator(api API, opts ...Option) (*Orchestrator, error) {
	if api == nil {
		return nil, fmt.Errorf("api client required")
	}
	o := &Orchestrator{
		api:           api,
		logg:          logger.Nop(),
		concurrency:   defaultConcurrency,
		paymentMethod: enums.PaymentMethodWallet,
		newKey:        uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

type lineOutcome struct {
	order *client.Order
	err   error
}

// PlaceOrder checks the wallet covers the cart total, then submits every line
// concurrently. The returned cart is empty on full success and holds only the
// failed lines otherwise. Sibling requests are never cancelled.
//
// Each line is sent under its SubmissionKey, assigned on first submission.
// A failed line keeps its key when the server may have applied the request,
// so retrying the returned cart cannot place that line twice. Lines the
// server definitively refused lose their key and get a fresh one next time.
func (o *Orchestrator) PlaceOrder(ctx context.Context, current cart.Store) (Result, cart.Store, error) {
	if current.IsEmpty() {
		return Result{}, current, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	total, err := current.TotalCents()
	if err != nil {
		return Result{}, current, err
	}
	if o.paymentMethod.MovesMoney() {
		wallet, err := o.api.WalletBalance(ctx)
		if err != nil {
			return Result{}, current, err
		}
		balance, err := money.FromDecimal(wallet.Balance)
		if err != nil {
			return Result{}, current, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode wallet balance")
		}
		if balance < total {
			return Result{TotalCents: total}, current, &InsufficientWalletBalanceError{
				BalanceCents:   balance,
				TotalCents:     total,
				ShortfallCents: total - balance,
			}
		}
	}

	current = cart.New(current.Lines()...)
	current.AssignSubmissionKeys(o.newKey)
	lines := current.Lines()
	outcomes := make([]lineOutcome, len(lines))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, line := range lines {
		g.Go(func() error {
			order, err := o.api.CreateOrder(ctx, client.CreateOrderRequest{
				ProductID:     line.Product.ID,
				Quantity:      line.Quantity,
				PaymentMethod: string(o.paymentMethod),
			}, line.SubmissionKey)
			outcomes[i] = lineOutcome{order: order, err: err}
			return nil
		})
	}
	// Line errors are kept in outcomes, so Wait only fails if a goroutine
	// breaks that rule.
	if err := g.Wait(); err != nil {
		return Result{}, current, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order lines")
	}

	result := Result{TotalCents: total}
	failedIDs := map[uuid.UUID]bool{}
	var settled []uuid.UUID
	var failures []LineFailure
	for i, outcome := range outcomes {
		if outcome.err != nil {
			failedIDs[lines[i].Product.ID] = true
			if !outcomeUnknown(outcome.err) {
				settled = append(settled, lines[i].Product.ID)
			}
			failures = append(failures, LineFailure{
				ProductID: lines[i].Product.ID,
				Name:      lines[i].Product.Name,
				Err:       outcome.err,
			})
			continue
		}
		result.Orders = append(result.Orders, *outcome.order)
	}

	if len(failures) == 0 {
		current.Clear()
		o.logg.Info(o.logg.WithField(ctx, "orders", len(result.Orders)), "checkout.placed")
		return result, current, nil
	}

	remaining := current.Retain(failedIDs)
	for _, id := range settled {
		remaining.ResetSubmissionKey(id)
	}
	o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
		"placed":  len(result.Orders),
		"failed":  len(failures),
		"unknown": len(failures) - len(settled),
	}), "checkout.partial_failure")
	return result, remaining, &PartialFailureError{Placed: len(result.Orders), Failed: failures}
}

// outcomeUnknown reports whether a failed request may still have been
// applied: the transport failed, the server errored, or a prior attempt with
// the same key is still in flight. Any other API error is a stored refusal
// that the server would replay for the same key.
func outcomeUnknown(err error) bool {
	apiErr := pkgerrors.As(err)
	if apiErr == nil {
		return true
	}
	switch apiErr.Code() {
	case pkgerrors.CodeNetwork, pkgerrors.CodeIdempotency:
		return true
	}
	return pkgerrors.MetadataFor(apiErr.Code()).HTTPStatus >= http.StatusInternalServerError
}
