package cart

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

// Product is the catalog snapshot a line is built from.
type Product struct {
	ID                 uuid.UUID       `json:"id"`
	FarmerID           uuid.UUID       `json:"farmer_id"`
	Name               string          `json:"name"`
	Unit               string          `json:"unit"`
	PriceCents         int64           `json:"price_cents"`
	DiscountPriceCents *int64          `json:"discount_price_cents,omitempty"`
	Available          decimal.Decimal `json:"available"`
}

// UnitPriceCents is the discount price when present, else the list price.
func (p Product) UnitPriceCents() int64 {
	if p.DiscountPriceCents != nil {
		return *p.DiscountPriceCents
	}
	return p.PriceCents
}

// Line is one product in the cart with the requested quantity.
//
// SubmissionKey is the Idempotency-Key used the first time the line was sent
// to the server. A retry of the same line reuses it so a request that did
// reach the server is not placed twice. Changing the quantity clears it.
type Line struct {
	Product       Product         `json:"product"`
	Quantity      decimal.Decimal `json:"quantity"`
	SubmissionKey string          `json:"submission_key,omitempty"`
}

func (l Line) TotalCents() (int64, error) {
	total, err := money.LineTotal(l.Product.UnitPriceCents(), l.Quantity)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInvalidAmount, err, fmt.Sprintf("total for %s is out of range", l.Product.Name))
	}
	return total, nil
}

// Store is the client-local cart. It is a plain value: mutators change the
// receiver and persistence only happens through Storage.
type Store struct {
	lines []Line
}

// New builds a cart from existing lines.
func New(lines ...Line) Store {
	return Store{lines: append([]Line(nil), lines...)}
}

// Add merges qty into the product's line. The resulting quantity may not
// exceed the stock known at add time.
func (s *Store) Add(p Product, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	idx := s.index(p.ID)
	next := qty
	if idx >= 0 {
		next = s.lines[idx].Quantity.Add(qty)
	}
	if next.GreaterThan(p.Available) {
		return stockLimit(p)
	}
	if idx >= 0 {
		s.lines[idx].Product = p
		s.lines[idx].Quantity = next
		s.lines[idx].SubmissionKey = ""
		return nil
	}
	s.lines = append(s.lines, Line{Product: p, Quantity: next})
	return nil
}

// UpdateQuantity sets an absolute quantity; zero or less removes the line.
func (s *Store) UpdateQuantity(productID uuid.UUID, qty decimal.Decimal) error {
	idx := s.index(productID)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
	}
	if !qty.IsPositive() {
		s.Remove(productID)
		return nil
	}
	if qty.GreaterThan(s.lines[idx].Product.Available) {
		return stockLimit(s.lines[idx].Product)
	}
	if !s.lines[idx].Quantity.Equal(qty) {
		s.lines[idx].SubmissionKey = ""
	}
	s.lines[idx].Quantity = qty
	return nil
}

func (s *Store) Remove(productID uuid.UUID) {
	idx := s.index(productID)
	if idx < 0 {
		return
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
}

func (s *Store) Clear() {
	s.lines = nil
}

// Lines returns a copy of the cart contents in insertion order.
func (s Store) Lines() []Line {
	return append([]Line(nil), s.lines...)
}

func (s Store) IsEmpty() bool {
	return len(s.lines) == 0
}

// TotalCents sums every line at its effective unit price.
func (s Store) TotalCents() (int64, error) {
	totals := make([]int64, 0, len(s.lines))
	for _, l := range s.lines {
		lt, err := l.TotalCents()
		if err != nil {
			return 0, err
		}
		totals = append(totals, lt)
	}
	total, err := money.Add(totals...)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInvalidAmount, err, "cart total is out of range")
	}
	return total, nil
}

// ItemCount sums quantities across lines.
func (s Store) ItemCount() decimal.Decimal {
	count := decimal.Zero
	for _, l := range s.lines {
		count = count.Add(l.Quantity)
	}
	return count
}

// AssignSubmissionKeys gives every line without a key a fresh one from
// newKey. Lines that already carry a key keep it.
func (s *Store) AssignSubmissionKeys(newKey func() string) {
	for i := range s.lines {
		if s.lines[i].SubmissionKey == "" {
			s.lines[i].SubmissionKey = newKey()
		}
	}
}

// ResetSubmissionKey drops the key of the product's line so the next
// submission is treated as a new request.
func (s *Store) ResetSubmissionKey(productID uuid.UUID) {
	if idx := s.index(productID); idx >= 0 {
		s.lines[idx].SubmissionKey = ""
	}
}

// Retain keeps only the lines whose product id is in keep.
func (s Store) Retain(keep map[uuid.UUID]bool) Store {
	out := Store{}
	for _, l := range s.lines {
		if keep[l.Product.ID] {
			out.lines = append(out.lines, l)
		}
	}
	return out
}

func (s Store) MarshalJSON() ([]byte, error) {
	lines := s.lines
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(lines)
}

func (s *Store) UnmarshalJSON(data []byte) error {
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	s.lines = lines
	return nil
}

func (s Store) index(productID uuid.UUID) int {
	for i, l := range s.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func stockLimit(p Product) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("Only %s %s available in stock", p.Available.String(), p.Unit)).
		WithDetails(map[string]any{"product_id": p.ID, "available": p.Available.String()})
}
