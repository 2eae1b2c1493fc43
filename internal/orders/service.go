package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/ledger"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// ExpiryReason is stored on orders cancelled by the expiry job.
const ExpiryReason = "Order expired: farmer did not respond"

const defaultExpiryBatch = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockManager reserves and returns product stock inside the order transaction.
type StockManager interface {
	Load(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty decimal.Decimal) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty decimal.Decimal) error
}

// WalletMover moves order money inside the order transaction.
type WalletMover interface {
	CreditTx(ctx context.Context, tx *gorm.DB, input ledger.MovementInput) (*models.WalletTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input ledger.MovementInput) (*models.WalletTransaction, error)
}

// TransitionRecorder observes committed status changes.
type TransitionRecorder interface {
	OrderTransition(status, paymentMethod string)
}

// Service owns order placement and the farmer-driven lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	Accept(ctx context.Context, orderID, farmerID uuid.UUID) (*OrderDTO, error)
	Reject(ctx context.Context, orderID, farmerID uuid.UUID, reason string) (*OrderDTO, error)
	MarkShipped(ctx context.Context, orderID, farmerID uuid.UUID) (*OrderDTO, error)
	MarkDelivered(ctx context.Context, orderID, farmerID uuid.UUID) (*OrderDTO, error)
	ExpirePending(ctx context.Context, now time.Time, limit int) (int, error)
	Get(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, input BuyerListInput) (pagination.Page[OrderDTO], error)
	ListForFarmer(ctx context.Context, farmerID uuid.UUID, input FarmerListInput) (pagination.Page[OrderDTO], error)
}

// CreateOrderInput is one cart line submitted by a buyer.
type CreateOrderInput struct {
	BuyerID       uuid.UUID
	ProductID     uuid.UUID
	Quantity      decimal.Decimal
	PaymentMethod enums.PaymentMethod
}

// BuyerListInput takes raw query values; Date is YYYY-MM-DD in UTC.
type BuyerListInput struct {
	Status     string
	Date       string
	Pagination pagination.Params
}

type FarmerListInput struct {
	Status     string
	Pagination pagination.Params
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	stock       StockManager
	wallet      WalletMover
	recorder    TransitionRecorder
	expiry      time.Duration
	maxReasonCh int
}

// NewService wires the order service. recorder may be nil.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, stock StockManager, wallet WalletMover, cfg config.OrdersConfig, recorder TransitionRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock manager required")
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet mover required")
	}
	maxReason := cfg.ReasonMaxLength
	if maxReason <= 0 {
		maxReason = 70
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      outbox,
		stock:       stock,
		wallet:      wallet,
		recorder:    recorder,
		expiry:      cfg.PendingExpiry,
		maxReasonCh: maxReason,
	}, nil
}

// CreateOrder checks stock, debits the buyer, reserves stock and writes a
// PENDING order as one transaction. Any failure leaves nothing behind.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if !input.Quantity.Equal(input.Quantity.Truncate(3)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity supports at most 3 decimal places")
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodWallet
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.stock.Load(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		if product.FarmerID == input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot order your own product")
		}
		if input.Quantity.GreaterThan(product.Quantity) {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  product.Quantity.String(),
					"requested":  input.Quantity.String(),
				})
		}

		unitPrice := product.EffectivePriceCents()
		total, err := money.LineTotal(unitPrice, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidAmount, err, "order total out of range").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"quantity":   input.Quantity.String(),
				})
		}
		created := &models.Order{
			ID:               uuid.New(),
			ProductID:        product.ID,
			BuyerID:          input.BuyerID,
			FarmerID:         product.FarmerID,
			Quantity:         input.Quantity,
			UnitPriceCents:   unitPrice,
			TotalAmountCents: total,
			PaymentMethod:    method,
			Status:           enums.OrderStatusPending,
		}

		if method.MovesMoney() && total > 0 {
			farmerID := product.FarmerID
			if _, err := s.wallet.DebitTx(ctx, tx, ledger.MovementInput{
				UserID:          input.BuyerID,
				AmountCents:     total,
				TransactionType: enums.WalletTxOrderPayment,
				RelatedUserID:   &farmerID,
				OrderID:         &created.ID,
				Description:     fmt.Sprintf("Payment for %s %s of %s", input.Quantity.String(), product.Unit, product.Name),
			}); err != nil {
				return err
			}
		}

		if err := s.stock.Reserve(ctx, tx, product.ID, input.Quantity); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.UserRoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:          created.ID,
				ProductID:        created.ProductID,
				BuyerID:          created.BuyerID,
				FarmerID:         created.FarmerID,
				Quantity:         created.Quantity.String(),
				UnitPriceCents:   created.UnitPriceCents,
				TotalAmountCents: created.TotalAmountCents,
				PaymentMethod:    created.PaymentMethod,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		loaded, err := repo.FindByID(ctx, created.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(order)
	dto := NewOrderDTO(order)
	return &dto, nil
}

// Accept settles a PENDING order: the farmer is credited the order total.
func (s *service) Accept(ctx context.Context, orderID, farmerID uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, orderID, farmerID, enums.OrderStatusAccepted, func(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) (map[string]any, error) {
		if order.PaymentMethod.MovesMoney() && order.TotalAmountCents > 0 {
			buyerID := order.BuyerID
			if _, err := s.wallet.CreditTx(ctx, tx, ledger.MovementInput{
				UserID:          order.FarmerID,
				AmountCents:     order.TotalAmountCents,
				TransactionType: enums.WalletTxSettlement,
				RelatedUserID:   &buyerID,
				OrderID:         &order.ID,
				Description:     "Settlement for accepted order",
			}); err != nil {
				return nil, err
			}
		}
		return map[string]any{"decided_at": now}, nil
	})
}

// Reject refunds the buyer and returns the stock. The reason is shown to the
// buyer verbatim.
func (s *service) Reject(ctx context.Context, orderID, farmerID uuid.UUID, reason string) (*OrderDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingReason, "rejection reason is required")
	}
	if n := utf8.RuneCountInString(reason); n > s.maxReasonCh {
		return nil, pkgerrors.New(pkgerrors.CodeReasonTooLong, fmt.Sprintf("rejection reason must be at most %d characters", s.maxReasonCh)).
			WithDetails(map[string]any{"max_length": s.maxReasonCh, "length": n})
	}
	return s.transition(ctx, orderID, farmerID, enums.OrderStatusRejected, func(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) (map[string]any, error) {
		if err := s.unwind(ctx, tx, order, "Refund for rejected order"); err != nil {
			return nil, err
		}
		return map[string]any{"decided_at": now, "rejection_reason": reason}, nil
	})
}

func (s *service) MarkShipped(ctx context.Context, orderID, farmerID uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, orderID, farmerID, enums.OrderStatusShipped, nil)
}

func (s *service) MarkDelivered(ctx context.Context, orderID, farmerID uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, orderID, farmerID, enums.OrderStatusDelivered, func(_ context.Context, _ *gorm.DB, _ *models.Order, now time.Time) (map[string]any, error) {
		return map[string]any{"delivered_at": now}, nil
	})
}

type sideEffect func(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) (map[string]any, error)

// transition runs a farmer-initiated status change. The conditional update
// and the money movement commit together or not at all.
func (s *service) transition(ctx context.Context, orderID, farmerID uuid.UUID, target enums.OrderStatus, effect sideEffect) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if farmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if current.FarmerID != farmerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to farmer")
		}
		if !current.Status.CanTransitionTo(target) {
			return stateConflict(current.Status, target)
		}

		now := time.Now().UTC()
		var updates map[string]any
		if effect != nil {
			updates, err = effect(ctx, tx, current, now)
			if err != nil {
				return err
			}
		}
		ok, err := repo.Transition(ctx, current.ID, []enums.OrderStatus{current.Status}, target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return stateConflict(current.Status, target)
		}

		if err := s.outbox.Emit(ctx, tx, transitionEvent(current, target, farmerID, updates, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
		}

		reloaded, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		order = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(order)
	dto := NewOrderDTO(order)
	return &dto, nil
}

// ExpirePending cancels PENDING orders older than the configured window.
// Each order is cancelled in its own transaction; failures are collected and
// the remaining orders are still processed.
func (s *service) ExpirePending(ctx context.Context, now time.Time, limit int) (int, error) {
	if s.expiry <= 0 {
		return 0, nil
	}
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	cutoff := now.Add(-s.expiry)
	stale, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	expired := 0
	var errs error
	for i := range stale {
		order := stale[i]
		cancelled, err := s.expireOne(ctx, order.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if cancelled {
			expired++
		}
	}
	return expired, errs
}

func (s *service) expireOne(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		if err := s.unwind(ctx, tx, order, "Refund for expired order"); err != nil {
			return err
		}
		updates := map[string]any{"decided_at": now, "rejection_reason": ExpiryReason}
		ok, err := repo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusCancelled, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return stateConflict(order.Status, enums.OrderStatusCancelled)
		}
		if err := s.outbox.Emit(ctx, tx, transitionEvent(order, enums.OrderStatusCancelled, uuid.Nil, updates, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
		}
		order.Status = enums.OrderStatusCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled == nil {
		return false, nil
	}
	s.record(cancelled)
	return true, nil
}

// unwind refunds a wallet-paid order and puts its quantity back on sale.
func (s *service) unwind(ctx context.Context, tx *gorm.DB, order *models.Order, description string) error {
	if order.PaymentMethod.MovesMoney() && order.TotalAmountCents > 0 {
		farmerID := order.FarmerID
		if _, err := s.wallet.CreditTx(ctx, tx, ledger.MovementInput{
			UserID:          order.BuyerID,
			AmountCents:     order.TotalAmountCents,
			TransactionType: enums.WalletTxRefund,
			RelatedUserID:   &farmerID,
			OrderID:         &order.ID,
			Description:     description,
		}); err != nil {
			return err
		}
	}
	return s.stock.Release(ctx, tx, order.ProductID, order.Quantity)
}

// Get returns an order to its buyer or farmer. Anyone else gets NOT_FOUND so
// order ids cannot be enumerated.
func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.FarmerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, input BuyerListInput) (pagination.Page[OrderDTO], error) {
	params := input.Pagination.Normalize(pagination.DefaultLimit, pagination.MaxLimit)
	filter := BuyerFilter{Limit: params.LimitWithBuffer(), Offset: params.Offset}

	status, err := parseStatusFilter(input.Status)
	if err != nil {
		return pagination.Page[OrderDTO]{}, err
	}
	filter.Status = status

	if raw := strings.TrimSpace(input.Date); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD")
		}
		next := day.AddDate(0, 0, 1)
		filter.From = &day
		filter.To = &next
	}

	rows, err := s.repo.ListForBuyer(ctx, buyerID, filter)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return pagination.BuildPage(newOrderDTOs(rows), params), nil
}

func (s *service) ListForFarmer(ctx context.Context, farmerID uuid.UUID, input FarmerListInput) (pagination.Page[OrderDTO], error) {
	params := input.Pagination.Normalize(pagination.DefaultLimit, pagination.MaxLimit)
	status, err := parseStatusFilter(input.Status)
	if err != nil {
		return pagination.Page[OrderDTO]{}, err
	}
	rows, err := s.repo.ListForFarmer(ctx, farmerID, FarmerFilter{
		Status: status,
		Limit:  params.LimitWithBuffer(),
		Offset: params.Offset,
	})
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farmer orders")
	}
	return pagination.BuildPage(newOrderDTOs(rows), params), nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) record(order *models.Order) {
	if s.recorder == nil || order == nil {
		return
	}
	s.recorder.OrderTransition(string(order.Status), string(order.PaymentMethod))
}

func parseStatusFilter(raw string) (*enums.OrderStatus, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, nil
}

func stateConflict(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"status": from, "target": to})
}

// transitionEvent builds order_decided for accept/reject and
// order_status_changed for everything else. A nil actor marks a system change.
func transitionEvent(order *models.Order, target enums.OrderStatus, actorID uuid.UUID, updates map[string]any, now time.Time) outbox.DomainEvent {
	reason, _ := updates["rejection_reason"].(string)
	var actor *outbox.ActorRef
	if actorID != uuid.Nil {
		actor = &outbox.ActorRef{UserID: actorID, Role: enums.UserRoleFarmer}
	}
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
	}
	switch target {
	case enums.OrderStatusAccepted, enums.OrderStatusRejected:
		decision := enums.OrderDecisionAccept
		if target == enums.OrderStatusRejected {
			decision = enums.OrderDecisionReject
		}
		event.EventType = enums.EventOrderDecided
		event.Data = payloads.OrderDecidedEvent{
			OrderID:  order.ID,
			BuyerID:  order.BuyerID,
			FarmerID: order.FarmerID,
			Decision: decision,
			Status:   target,
			Reason:   reason,
		}
	default:
		event.EventType = enums.EventOrderStatusChanged
		event.Data = payloads.OrderStatusChangedEvent{
			OrderID:   order.ID,
			BuyerID:   order.BuyerID,
			FarmerID:  order.FarmerID,
			From:      order.Status,
			To:        target,
			Reason:    reason,
			ChangedAt: now,
		}
	}
	return event
}
