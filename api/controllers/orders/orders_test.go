package orders

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	internalorders "github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

type stubOrderService struct {
	created    internalorders.CreateOrderInput
	buyerQuery internalorders.BuyerListInput
	reason     string
	calls      []string
}

func (s *stubOrderService) CreateOrder(_ context.Context, input internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
	s.created = input
	return &internalorders.OrderDTO{ID: uuid.New(), Status: enums.OrderStatusPending}, nil
}

func (s *stubOrderService) Accept(_ context.Context, orderID, _ uuid.UUID) (*internalorders.OrderDTO, error) {
	s.calls = append(s.calls, "accept")
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusAccepted}, nil
}

func (s *stubOrderService) Reject(_ context.Context, orderID, _ uuid.UUID, reason string) (*internalorders.OrderDTO, error) {
	s.calls = append(s.calls, "reject")
	s.reason = reason
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingReason, "rejection reason is required")
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusRejected}, nil
}

func (s *stubOrderService) MarkShipped(_ context.Context, orderID, _ uuid.UUID) (*internalorders.OrderDTO, error) {
	s.calls = append(s.calls, "ship")
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move from PENDING to SHIPPED")
}

func (s *stubOrderService) MarkDelivered(_ context.Context, orderID, _ uuid.UUID) (*internalorders.OrderDTO, error) {
	s.calls = append(s.calls, "deliver")
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusDelivered}, nil
}

func (s *stubOrderService) ExpirePending(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (s *stubOrderService) Get(_ context.Context, orderID, _ uuid.UUID) (*internalorders.OrderDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrderService) ListForBuyer(_ context.Context, _ uuid.UUID, input internalorders.BuyerListInput) (pagination.Page[internalorders.OrderDTO], error) {
	s.buyerQuery = input
	return pagination.Page[internalorders.OrderDTO]{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrderService) ListForFarmer(context.Context, uuid.UUID, internalorders.FarmerListInput) (pagination.Page[internalorders.OrderDTO], error) {
	return pagination.Page[internalorders.OrderDTO]{Items: []internalorders.OrderDTO{}}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func authed(req *http.Request, role enums.UserRole) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: uuid.New(), Role: role, AccessID: "a"}))
}

func withID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCreateOrder(t *testing.T) {
	svc := &stubOrderService{}
	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":"2.5","payment_method":"cod"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Create(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, productID, svc.created.ProductID)
	assert.Equal(t, enums.PaymentMethodCOD, svc.created.PaymentMethod)
	assert.Equal(t, "2.5", svc.created.Quantity.String())
}

func TestCreateOrderDefaultsPaymentMethod(t *testing.T) {
	svc := &stubOrderService{}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":1}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Create(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, enums.PaymentMethod(""), svc.created.PaymentMethod)
}

func TestCreateOrderRejectsUnknownMethod(t *testing.T) {
	body := `{"product_id":"` + uuid.NewString() + `","quantity":1,"payment_method":"BARTER"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Create(&stubOrderService{}, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBuyerPassesFilters(t *testing.T) {
	svc := &stubOrderService{}
	req := authed(httptest.NewRequest(http.MethodGet, "/api/orders/buyer?status=PENDING&date=2024-05-01", nil), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	ListBuyer(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", svc.buyerQuery.Status)
	assert.Equal(t, "2024-05-01", svc.buyerQuery.Date)
	assert.Equal(t, pagination.DefaultLimit, svc.buyerQuery.Pagination.Limit)
}

func TestDetailHidesForeignOrders(t *testing.T) {
	req := withID(authed(httptest.NewRequest(http.MethodGet, "/", nil), enums.UserRoleCustomer), uuid.NewString())
	rec := httptest.NewRecorder()
	Detail(&stubOrderService{}, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		name    string
		handler func(internalorders.Service, *logger.Logger) http.HandlerFunc
		body    string
		status  int
	}{
		{"accept", Accept, "", http.StatusOK},
		{"reject with reason", Reject, `{"reason":"out of stock"}`, http.StatusOK},
		{"reject without body", Reject, "", http.StatusBadRequest},
		{"ship from pending", Ship, "", http.StatusUnprocessableEntity},
		{"deliver", Deliver, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{}
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := withID(authed(httptest.NewRequest(http.MethodPut, "/", body), enums.UserRoleFarmer), uuid.NewString())
			rec := httptest.NewRecorder()
			tc.handler(svc, testLogger()).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Len(t, svc.calls, 1)
		})
	}
}

func TestTransitionRequiresValidID(t *testing.T) {
	svc := &stubOrderService{}
	req := withID(authed(httptest.NewRequest(http.MethodPut, "/", nil), enums.UserRoleFarmer), "123")
	rec := httptest.NewRecorder()
	Accept(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}
