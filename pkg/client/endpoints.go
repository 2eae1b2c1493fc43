package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

func (c *Client) Register(ctx context.Context, input RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "auth/register", body: input}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Login stores the returned access token on the client.
func (c *Client) Login(ctx context.Context, input LoginRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "auth/login", body: input}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, request{method: http.MethodPost, path: "auth/refresh", body: body}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout revokes the session server side and always forgets the token locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "auth/logout"}, nil)
	c.SetToken("")
	return err
}

// ForgotPassword asks the server to mail a reset code. It succeeds for
// unknown addresses too.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, request{method: http.MethodPost, path: "auth/forgot-password", body: body}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, input ResetPasswordRequest) error {
	return c.do(ctx, request{method: http.MethodPost, path: "auth/reset-password", body: input}, nil)
}

func (c *Client) ListProducts(ctx context.Context, query ProductQuery) (*Page[Product], error) {
	q := pageQuery(query.Limit, query.Offset)
	setIf(q, "category", query.Category)
	setIf(q, "q", query.Search)
	var out Page[Product]
	if err := c.do(ctx, request{method: http.MethodGet, path: "products", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyProducts(ctx context.Context, limit, offset int) (*Page[Product], error) {
	var out Page[Product]
	req := request{method: http.MethodGet, path: "products/farmer/my-products", query: pageQuery(limit, offset)}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var out Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "products/" + id.String()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	var out Product
	if err := c.do(ctx, request{method: http.MethodPost, path: "products", body: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*Product, error) {
	var out Product
	if err := c.do(ctx, request{method: http.MethodPut, path: "products/" + id.String(), body: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "products/" + id.String()}, nil)
}

// CreateOrder places one order line. idempotencyKey makes a resend of the
// same line return the original order instead of placing a second one.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderRequest, idempotencyKey string) (*Order, error) {
	var out Order
	req := request{method: http.MethodPost, path: "orders", body: input, idempotencyKey: idempotencyKey}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BuyerOrders(ctx context.Context, query OrderQuery) (*Page[Order], error) {
	q := pageQuery(query.Limit, query.Offset)
	setIf(q, "status", query.Status)
	setIf(q, "date", query.Date)
	return c.listOrders(ctx, "orders/buyer", q)
}

func (c *Client) FarmerOrders(ctx context.Context, query OrderQuery) (*Page[Order], error) {
	q := pageQuery(query.Limit, query.Offset)
	setIf(q, "status", query.Status)
	return c.listOrders(ctx, "orders/farmer", q)
}

func (c *Client) listOrders(ctx context.Context, path string, q url.Values) (*Page[Order], error) {
	var out Page[Order]
	if err := c.do(ctx, request{method: http.MethodGet, path: path, query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var out Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "orders/" + id.String()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return c.orderAction(ctx, id, "accept", nil)
}

func (c *Client) RejectOrder(ctx context.Context, id uuid.UUID, reason string) (*Order, error) {
	return c.orderAction(ctx, id, "reject", map[string]string{"reason": reason})
}

func (c *Client) ShipOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return c.orderAction(ctx, id, "ship", nil)
}

func (c *Client) DeliverOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return c.orderAction(ctx, id, "deliver", nil)
}

func (c *Client) orderAction(ctx context.Context, id uuid.UUID, action string, body any) (*Order, error) {
	var out Order
	req := request{method: http.MethodPut, path: "orders/" + id.String() + "/" + action, body: body}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WalletBalance(ctx context.Context) (*Wallet, error) {
	var out Wallet
	if err := c.do(ctx, request{method: http.MethodGet, path: "wallet/balance"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WalletTransactions(ctx context.Context, query TransactionQuery) (*Page[WalletTransaction], error) {
	q := pageQuery(query.Limit, query.Offset)
	setIf(q, "type", query.Type)
	var out Page[WalletTransaction]
	if err := c.do(ctx, request{method: http.MethodGet, path: "wallet/transactions", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WalletSummary(ctx context.Context) (*WalletSummary, error) {
	var out WalletSummary
	if err := c.do(ctx, request{method: http.MethodGet, path: "wallet/summary"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddMoney(ctx context.Context, input AddMoneyRequest, idempotencyKey string) (*WalletTransaction, error) {
	var out WalletTransaction
	req := request{method: http.MethodPost, path: "wallet/add-money", body: input, idempotencyKey: idempotencyKey}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
