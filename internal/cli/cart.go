package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/pkg/client"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

func newCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local shopping cart",
	}
	cmd.AddCommand(newCartAddCommand(opts))
	cmd.AddCommand(newCartUpdateCommand(opts))
	cmd.AddCommand(newCartRemoveCommand(opts))
	cmd.AddCommand(newCartShowCommand(opts))
	cmd.AddCommand(newCartClearCommand(opts))
	return cmd
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q", raw)
	}
	return qty, nil
}

// cartProduct snapshots a catalog product with prices in cents.
func cartProduct(p *client.Product) (cart.Product, error) {
	price, err := money.FromDecimal(p.Price)
	if err != nil {
		return cart.Product{}, fmt.Errorf("product price: %w", err)
	}
	out := cart.Product{
		ID:         p.ID,
		FarmerID:   p.FarmerID,
		Name:       p.Name,
		Unit:       p.Unit,
		PriceCents: price,
		Available:  p.Quantity,
	}
	if p.DiscountPrice != nil {
		discount, err := money.FromDecimal(*p.DiscountPrice)
		if err != nil {
			return cart.Product{}, fmt.Errorf("product discount price: %w", err)
		}
		out.DiscountPriceCents = &discount
	}
	return out, nil
}

func newCartAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> <quantity>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			p, err := s.api.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			item, err := cartProduct(p)
			if err != nil {
				return err
			}
			return s.mutateCart(cmd, func(store *cart.Store) error {
				return store.Add(item, qty)
			})
		},
	}
}

func newCartUpdateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			return s.mutateCart(cmd, func(store *cart.Store) error {
				return store.UpdateQuantity(id, qty)
			})
		},
	}
}

func newCartRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			return s.mutateCart(cmd, func(store *cart.Store) error {
				store.Remove(id)
				return nil
			})
		},
	}
}

func newCartShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show cart lines and the total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			store, err := s.loadCart(cmd.Context())
			if err != nil {
				return err
			}
			return s.out.emit(store, func(w io.Writer) { writeCart(w, store) })
		},
	}
}

func newCartClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			return s.mutateCart(cmd, func(store *cart.Store) error {
				store.Clear()
				return nil
			})
		},
	}
}

// mutateCart loads the cart, applies fn and saves it, then prints the result.
// A failed fn leaves the stored cart untouched.
func (s *session) mutateCart(cmd *cobra.Command, fn func(store *cart.Store) error) error {
	store, err := s.loadCart(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(&store); err != nil {
		return err
	}
	if err := s.saveCart(cmd.Context(), store); err != nil {
		return err
	}
	return s.out.emit(store, func(w io.Writer) { writeCart(w, store) })
}
