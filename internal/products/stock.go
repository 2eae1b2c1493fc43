package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

// Stock exposes the catalog primitives order placement needs. Every method
// runs on the caller's transaction.
type Stock struct {
	repo *Repository
}

func NewStock(repo *Repository) *Stock {
	return &Stock{repo: repo}
}

// Load returns a live product or PRODUCT_NOT_FOUND.
func (s *Stock) Load(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.WithTx(tx).FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// Reserve removes qty from available stock or fails with INSUFFICIENT_STOCK.
func (s *Stock) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty decimal.Decimal) error {
	ok, err := s.repo.WithTx(tx).DecrementStock(ctx, productID, qty)
	if err != nil && !db.IsCheckViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	// The quantity >= 0 CHECK is the last line against a concurrent reserve.
	if !ok || err != nil {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID, "requested": qty.String()})
	}
	return nil
}

// Release puts qty back after a rejection or cancellation.
func (s *Stock) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty decimal.Decimal) error {
	if err := s.repo.WithTx(tx).RestoreStock(ctx, productID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
	}
	return nil
}
