package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// Repository is the persistence surface of the order lifecycle.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, updates map[string]any) (bool, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter BuyerFilter) ([]models.Order, error)
	ListForFarmer(ctx context.Context, farmerID uuid.UUID, filter FarmerFilter) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// BuyerFilter narrows the buyer order history. From/To bound created_at
// as a half-open range.
type BuyerFilter struct {
	Status *enums.OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// FarmerFilter narrows the farmer inbox.
type FarmerFilter struct {
	Status *enums.OrderStatus
	Limit  int
	Offset int
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

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withParties(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Transition moves the order to `to` only while it is still in one of the
// `from` states. false means another writer got there first.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter BuyerFilter) ([]models.Order, error) {
	q := r.withParties(r.db.WithContext(ctx)).Where("buyer_id = ?", buyerID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	return r.page(q, filter.Limit, filter.Offset)
}

func (r *repository) ListForFarmer(ctx context.Context, farmerID uuid.UUID, filter FarmerFilter) ([]models.Order, error) {
	q := r.withParties(r.db.WithContext(ctx)).Where("farmer_id = ?", farmerID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	return r.page(q, filter.Limit, filter.Offset)
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) page(q *gorm.DB, limit, offset int) ([]models.Order, error) {
	var rows []models.Order
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// withParties preloads the product (soft-deleted included, orders outlive
// listings) and both parties.
func (r *repository) withParties(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Buyer").
		Preload("Farmer")
}
