package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/farmlink-backend/pkg/db/types"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

const (
	maxNameLength     = 120
	maxQuantityPlaces = 3
	maxImages         = 8
	// 10,000,000.00 per unit.
	maxPriceCents int64 = 1e9
)

// Service covers farmer product management and the buyer catalog.
type Service interface {
	CreateProduct(ctx context.Context, farmerID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, farmerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, farmerID, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListMine(ctx context.Context, farmerID uuid.UUID, params pagination.Params) (pagination.Page[ProductDTO], error)
	ListCatalog(ctx context.Context, input CatalogInput) (pagination.Page[ProductDTO], error)
}

// CreateProductInput carries a new listing in major units.
type CreateProductInput struct {
	Name          string
	Category      enums.ProductCategory
	Unit          enums.ProductUnit
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	Quantity      decimal.Decimal
	Description   *string
	ImageURLs     []string
}

// UpdateProductInput is a partial update; nil fields are left unchanged.
// ClearDiscount removes an existing discount price.
type UpdateProductInput struct {
	Name          *string
	Category      *enums.ProductCategory
	Unit          *enums.ProductUnit
	Price         *decimal.Decimal
	DiscountPrice *decimal.Decimal
	ClearDiscount bool
	Quantity      *decimal.Decimal
	Description   *string
	ImageURLs     *[]string
}

// CatalogInput drives the buyer product listing.
type CatalogInput struct {
	Category   string
	Search     string
	Pagination pagination.Params
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, farmerID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if farmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "farmer id is required")
	}
	name := strings.TrimSpace(input.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", input.Category))
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit %q", input.Unit))
	}
	priceCents, err := priceToCents("price", input.Price)
	if err != nil {
		return nil, err
	}
	var discountCents *int64
	if input.DiscountPrice != nil {
		cents, err := priceToCents("discount_price", *input.DiscountPrice)
		if err != nil {
			return nil, err
		}
		discountCents = &cents
	}
	if err := validateDiscount(priceCents, discountCents); err != nil {
		return nil, err
	}
	if err := validateQuantity(input.Quantity); err != nil {
		return nil, err
	}
	images, err := normalizeImages(input.ImageURLs)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		FarmerID:           farmerID,
		Name:               name,
		Category:           input.Category,
		Unit:               input.Unit,
		PriceCents:         priceCents,
		DiscountPriceCents: discountCents,
		Quantity:           input.Quantity,
		Description:        trimmedPtr(input.Description),
		ImageURLs:          images,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, farmerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, farmerID, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		product.Name = name
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", *input.Category))
		}
		product.Category = *input.Category
	}
	if input.Unit != nil {
		if !input.Unit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit %q", *input.Unit))
		}
		product.Unit = *input.Unit
	}
	if input.Price != nil {
		cents, err := priceToCents("price", *input.Price)
		if err != nil {
			return nil, err
		}
		product.PriceCents = cents
	}
	switch {
	case input.ClearDiscount:
		product.DiscountPriceCents = nil
	case input.DiscountPrice != nil:
		cents, err := priceToCents("discount_price", *input.DiscountPrice)
		if err != nil {
			return nil, err
		}
		product.DiscountPriceCents = &cents
	}
	if err := validateDiscount(product.PriceCents, product.DiscountPriceCents); err != nil {
		return nil, err
	}
	if input.Quantity != nil {
		if err := validateQuantity(*input.Quantity); err != nil {
			return nil, err
		}
		product.Quantity = *input.Quantity
	}
	if input.Description != nil {
		product.Description = trimmedPtr(input.Description)
	}
	if input.ImageURLs != nil {
		images, err := normalizeImages(*input.ImageURLs)
		if err != nil {
			return nil, err
		}
		product.ImageURLs = images
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

// DeleteProduct soft deletes so existing orders keep a valid product reference.
func (s *service) DeleteProduct(ctx context.Context, farmerID, productID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, farmerID, productID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.find(ctx, productID)
	if err != nil {
		return nil, err
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, farmerID uuid.UUID, params pagination.Params) (pagination.Page[ProductDTO], error) {
	page := params.Normalize(pagination.DefaultLimit, pagination.MaxLimit)
	rows, err := s.repo.ListByFarmer(ctx, farmerID, page.LimitWithBuffer(), page.Offset)
	if err != nil {
		return pagination.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return pagination.BuildPage(newProductDTOs(rows), page), nil
}

func (s *service) ListCatalog(ctx context.Context, input CatalogInput) (pagination.Page[ProductDTO], error) {
	page := input.Pagination.Normalize(pagination.DefaultLimit, pagination.MaxLimit)
	query := CatalogQuery{Search: input.Search, Limit: page.LimitWithBuffer(), Offset: page.Offset}
	if raw := strings.ToUpper(strings.TrimSpace(input.Category)); raw != "" {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return pagination.Page[ProductDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		query.Category = &category
	}
	rows, err := s.repo.ListAvailable(ctx, query)
	if err != nil {
		return pagination.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list catalog")
	}
	return pagination.BuildPage(newProductDTOs(rows), page), nil
}

func (s *service) find(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) loadOwned(ctx context.Context, farmerID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.find(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.FarmerID != farmerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to farmer")
	}
	return product, nil
}

func validateName(name string) error {
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	return nil
}

func priceToCents(field string, value decimal.Decimal) (int64, error) {
	if value.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidAmount, fmt.Sprintf("%s must not be negative", field))
	}
	cents, err := money.FromDecimal(value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInvalidAmount, err, fmt.Sprintf("invalid %s", field))
	}
	if cents > maxPriceCents {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidAmount, fmt.Sprintf("%s must be at most %s", field, money.Format(maxPriceCents))).
			WithDetails(map[string]any{"field": field, "max": money.Format(maxPriceCents)})
	}
	return cents, nil
}

func validateDiscount(priceCents int64, discountCents *int64) error {
	if discountCents != nil && *discountCents > priceCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_price cannot exceed price")
	}
	return nil
}

func validateQuantity(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if !qty.Equal(qty.Truncate(maxQuantityPlaces)) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity supports at most %d decimal places", maxQuantityPlaces))
	}
	return nil
}

func normalizeImages(urls []string) (dbtypes.StringArray, error) {
	out := dbtypes.StringArray{}
	for _, raw := range urls {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) > maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images are allowed", maxImages))
	}
	return out, nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
