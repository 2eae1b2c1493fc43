package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/api/validators"
	productsvc "github.com/angelmondragon/farmlink-backend/internal/products"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

type productRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,max=120"`
	Category      *string          `json:"category,omitempty"`
	Unit          *string          `json:"unit,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	ClearDiscount bool             `json:"clear_discount,omitempty"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	ImageURLs     []string         `json:"image_urls,omitempty" validate:"omitempty,max=8,dive,url"`
}

func (p productRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	missing := map[string]string{}
	if p.Name == nil {
		missing["name"] = "is required"
	}
	if p.Category == nil {
		missing["category"] = "is required"
	}
	if p.Unit == nil {
		missing["unit"] = "is required"
	}
	if p.Price == nil {
		missing["price"] = "is required"
	}
	if p.Quantity == nil {
		missing["quantity"] = "is required"
	}
	if len(missing) > 0 {
		return productsvc.CreateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(missing)
	}
	category, err := parseCategory(*p.Category)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	unit, err := parseUnit(*p.Unit)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	return productsvc.CreateProductInput{
		Name:          *p.Name,
		Category:      category,
		Unit:          unit,
		Price:         *p.Price,
		DiscountPrice: p.DiscountPrice,
		Quantity:      *p.Quantity,
		Description:   p.Description,
		ImageURLs:     p.ImageURLs,
	}, nil
}

func (p productRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		Name:          p.Name,
		Price:         p.Price,
		DiscountPrice: p.DiscountPrice,
		ClearDiscount: p.ClearDiscount,
		Quantity:      p.Quantity,
		Description:   p.Description,
	}
	if p.Category != nil {
		category, err := parseCategory(*p.Category)
		if err != nil {
			return input, err
		}
		input.Category = &category
	}
	if p.Unit != nil {
		unit, err := parseUnit(*p.Unit)
		if err != nil {
			return input, err
		}
		input.Unit = &unit
	}
	if p.ImageURLs != nil {
		urls := p.ImageURLs
		input.ImageURLs = &urls
	}
	return input, nil
}

func parseCategory(raw string) (enums.ProductCategory, error) {
	category, err := enums.ParseProductCategory(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return category, nil
}

func parseUnit(raw string) (enums.ProductUnit, error) {
	unit, err := enums.ParseProductUnit(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}
	return unit, nil
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), farmerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, product, "Product created")
	}
}

func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), farmerID, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, product, "Product updated")
	}
}

func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), farmerID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, nil, "Product deleted")
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ListMyProducts returns the caller's own listings.
func ListMyProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListMine(r.Context(), farmerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ListCatalog is the buyer-facing listing with category and text filters.
func ListCatalog(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListCatalog(r.Context(), productsvc.CatalogInput{
			Category:   validators.QueryString(r, "category"),
			Search:     validators.QueryString(r, "q"),
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
