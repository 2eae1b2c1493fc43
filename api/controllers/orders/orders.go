package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/api/validators"
	internalorders "github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

type createOrderRequest struct {
	ProductID     uuid.UUID       `json:"product_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	PaymentMethod string          `json:"payment_method,omitempty" validate:"omitempty,oneof=WALLET COD wallet cod"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Create places one order for the calling customer.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var method enums.PaymentMethod
		if raw := strings.TrimSpace(payload.PaymentMethod); raw != "" {
			method, err = enums.ParsePaymentMethod(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
				return
			}
		}
		order, err := svc.CreateOrder(r.Context(), internalorders.CreateOrderInput{
			BuyerID:       buyerID,
			ProductID:     payload.ProductID,
			Quantity:      payload.Quantity,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), order.ID.String())
		logg.Info(ctx, "order placed")
		responses.WriteMessage(w, http.StatusCreated, order, "Order placed")
	}
}

func ListBuyer(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForBuyer(r.Context(), buyerID, internalorders.BuyerListInput{
			Status:     validators.QueryString(r, "status"),
			Date:       validators.QueryString(r, "date"),
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ListFarmer(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.ListForFarmer(r.Context(), farmerID, internalorders.FarmerListInput{
			Status:     validators.QueryString(r, "status"),
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Detail is visible to the buyer and the farmer of the order only.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type transitionFunc func(r *http.Request, orderID, farmerID uuid.UUID) (*internalorders.OrderDTO, error)

// transition runs one farmer decision against the order in the URL.
func transition(logg *logger.Logger, message string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := fn(r, orderID, farmerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{"order_id": order.ID.String(), "status": string(order.Status)})
		logg.Info(ctx, "order status changed")
		responses.WriteMessage(w, http.StatusOK, order, message)
	}
}

func Accept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, "Order accepted", func(r *http.Request, orderID, farmerID uuid.UUID) (*internalorders.OrderDTO, error) {
		return svc.Accept(r.Context(), orderID, farmerID)
	})
}

func Reject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, "Order rejected", func(r *http.Request, orderID, farmerID uuid.UUID) (*internalorders.OrderDTO, error) {
		var payload rejectRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.Reject(r.Context(), orderID, farmerID, payload.Reason)
	})
}

func Ship(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, "Order shipped", func(r *http.Request, orderID, farmerID uuid.UUID) (*internalorders.OrderDTO, error) {
		return svc.MarkShipped(r.Context(), orderID, farmerID)
	})
}

func Deliver(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, "Order delivered", func(r *http.Request, orderID, farmerID uuid.UUID) (*internalorders.OrderDTO, error) {
		return svc.MarkDelivered(r.Context(), orderID, farmerID)
	})
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}
