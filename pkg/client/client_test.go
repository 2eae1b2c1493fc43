package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithHTTPClient(&http.Client{Transport: rt}))
	c, err := NewClient("http://farmlink.test/api/", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestCreateOrderSendsTokenAndIdempotencyKey(t *testing.T) {
	productID := uuid.New()
	orderID := uuid.New()

	var captured *http.Request
	var payload map[string]any
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"success":true,"data":{"id":"`+orderID.String()+`","status":"PENDING","total_amount":"60.00","quantity":"2"}}`), nil
	}, WithToken("access-1"))

	order, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		ProductID:     productID,
		Quantity:      decimal.NewFromInt(2),
		PaymentMethod: "WALLET",
	}, "line-key-1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if captured.URL.String() != "http://farmlink.test/api/orders" {
		t.Fatalf("unexpected url %q", captured.URL.String())
	}
	if captured.Header.Get("Authorization") != "Bearer access-1" {
		t.Fatalf("missing bearer token")
	}
	if captured.Header.Get("Idempotency-Key") != "line-key-1" {
		t.Fatalf("missing idempotency key")
	}
	if payload["product_id"] != productID.String() || payload["quantity"] != "2" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if order.ID != orderID || order.Status != "PENDING" || !order.TotalAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestAPIErrorCarriesCodeAndDetails(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"success":false,"message":"insufficient funds","error":{"code":"INSUFFICIENT_FUNDS","details":{"shortfall":"40.00"}}}`), nil
	})

	_, err := c.WalletBalance(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	if typed.Message() != "insufficient funds" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["shortfall"] != "40.00" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestUnauthorizedClearsToken(t *testing.T) {
	hookCalled := false
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"success":false,"message":"session expired","error":{"code":"UNAUTHORIZED"}}`), nil
	}, WithToken("stale"), WithUnauthorizedHook(func() { hookCalled = true }))

	_, err := c.BuyerOrders(context.Background(), OrderQuery{Status: "PENDING"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if c.Token() != "" {
		t.Fatalf("token should be cleared")
	}
	if !hookCalled {
		t.Fatalf("unauthorized hook not called")
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := c.WalletBalance(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNetwork {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
	if typed.Message() != NetworkErrorMessage {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestListQueryParameters(t *testing.T) {
	var rawQuery, path string
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		rawQuery = req.URL.RawQuery
		path = req.URL.Path
		return jsonResponse(http.StatusOK, `{"success":true,"data":{"items":[],"limit":10,"offset":20,"has_more":false}}`), nil
	})

	page, err := c.WalletTransactions(context.Background(), TransactionQuery{Type: "CREDIT", Limit: 10, Offset: 20})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if path != "/api/wallet/transactions" {
		t.Fatalf("unexpected path %q", path)
	}
	if rawQuery != "limit=10&offset=20&type=CREDIT" {
		t.Fatalf("unexpected query %q", rawQuery)
	}
	if page.Limit != 10 || page.Offset != 20 || len(page.Items) != 0 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestLoginStoresToken(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"success":true,"data":{"user":{"id":"`+uuid.NewString()+`","role":"CUSTOMER"},"token":"tok","refresh_token":"ref"}}`), nil
	})

	res, err := c.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.RefreshToken != "ref" || c.Token() != "tok" {
		t.Fatalf("unexpected auth result %+v token=%q", res, c.Token())
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for blank base url")
	}
}
