package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/pkg/client"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

type output struct {
	w      io.Writer
	format string
}

// emit writes v as indented JSON, or calls text for the plain format.
func (o *output) emit(v any, text func(w io.Writer)) error {
	if o.format == "json" {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(o.w)
	return nil
}

func (o *output) message(msg string) {
	if o.format == "json" {
		_ = o.emit(map[string]string{"message": msg}, nil)
		return
	}
	fmt.Fprintln(o.w, msg)
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func writeProduct(w io.Writer, p client.Product) {
	price := amount(p.Price)
	if p.DiscountPrice != nil {
		price = fmt.Sprintf("%s (was %s)", amount(*p.DiscountPrice), price)
	}
	fmt.Fprintf(w, "%s  %s  %s  %s/%s  stock %s\n", p.ID, p.Name, p.Category, price, p.Unit, p.Quantity.String())
}

func writeProducts(w io.Writer, page *client.Page[client.Product]) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No products found.")
		return
	}
	for _, p := range page.Items {
		writeProduct(w, p)
	}
	writeMore(w, page.HasMore, page.Offset+len(page.Items))
}

func writeMore(w io.Writer, hasMore bool, next int) {
	if hasMore {
		fmt.Fprintf(w, "More results: --offset %d\n", next)
	}
}

func writeCart(w io.Writer, store cart.Store) {
	if store.IsEmpty() {
		fmt.Fprintln(w, "Cart is empty.")
		return
	}
	for _, line := range store.Lines() {
		fmt.Fprintf(w, "%s  %s  %s %s x %s = %s\n",
			line.Product.ID, line.Product.Name, line.Quantity.String(), line.Product.Unit,
			money.Format(line.Product.UnitPriceCents()), checkedTotal(line.TotalCents()))
	}
	fmt.Fprintf(w, "Items: %s\n", store.ItemCount().String())
	fmt.Fprintf(w, "Total: %s\n", checkedTotal(store.TotalCents()))
}

func checkedTotal(cents int64, err error) string {
	if err != nil {
		return "out of range"
	}
	return money.Format(cents)
}

func writeOrder(w io.Writer, o client.Order) {
	name := o.ProductID.String()
	if o.Product != nil {
		name = o.Product.Name
	}
	fmt.Fprintf(w, "%s  %s  %s x %s = %s  %s  %s\n",
		o.ID, name, o.Quantity.String(), amount(o.UnitPrice), amount(o.TotalAmount), o.PaymentMethod, o.Status)
	if o.RejectionReason != nil {
		fmt.Fprintf(w, "  reason: %s\n", *o.RejectionReason)
	}
}

func writeOrders(w io.Writer, page *client.Page[client.Order]) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No orders found.")
		return
	}
	for _, o := range page.Items {
		writeOrder(w, o)
	}
	writeMore(w, page.HasMore, page.Offset+len(page.Items))
}

func writeTransactions(w io.Writer, page *client.Page[client.WalletTransaction]) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}
	for _, tx := range page.Items {
		sign := "+"
		if tx.Type == "DEBIT" {
			sign = "-"
		}
		fmt.Fprintf(w, "%s  %s  %s%s  balance %s  %s\n",
			tx.CreatedAt.Format("2006-01-02 15:04"), tx.TransactionType, sign, amount(tx.Amount), amount(tx.BalanceAfter), tx.Description)
	}
	writeMore(w, page.HasMore, page.Offset+len(page.Items))
}
