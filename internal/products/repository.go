package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// CatalogQuery filters the buyer-facing catalog.
type CatalogQuery struct {
	Category *enums.ProductCategory
	Search   string
	Limit    int
	Offset   int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID returns a live product. Soft-deleted rows yield gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// SoftDelete hides the product from the catalog. Orders keep referencing the row.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

func (r *Repository) ListByFarmer(ctx context.Context, farmerID uuid.UUID, limit, offset int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("farmer_id = ?", farmerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// ListAvailable returns in-stock products, newest first.
func (r *Repository) ListAvailable(ctx context.Context, q CatalogQuery) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Where("quantity > 0").
		Order("created_at DESC").
		Order("id DESC").
		Limit(q.Limit).
		Offset(q.Offset)
	if q.Category != nil {
		query = query.Where("category = ?", *q.Category)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	var rows []models.Product
	err := query.Find(&rows).Error
	return rows, err
}

// DecrementStock subtracts qty only when enough stock remains. The returned
// bool is false when the guard rejected the update.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestoreStock adds qty back, including on soft-deleted products.
func (r *Repository) RestoreStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error {
	return r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error
}
