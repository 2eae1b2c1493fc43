package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/angelmondragon/farmlink-backend/pkg/client"
)

type pageFlags struct {
	limit  int
	offset int
}

func (p *pageFlags) bind(fs *pflag.FlagSet) {
	fs.IntVar(&p.limit, "limit", 0, "page size (server default when 0)")
	fs.IntVar(&p.offset, "offset", 0, "number of items to skip")
}

func newProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog and manage your listings",
	}
	cmd.AddCommand(newProductsListCommand(opts))
	cmd.AddCommand(newProductsShowCommand(opts))
	cmd.AddCommand(newProductsMineCommand(opts))
	cmd.AddCommand(newProductsCreateCommand(opts))
	cmd.AddCommand(newProductsUpdateCommand(opts))
	cmd.AddCommand(newProductsDeleteCommand(opts))
	return cmd
}

func newProductsListCommand(opts *RootOptions) *cobra.Command {
	var (
		query client.ProductQuery
		page  pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			query.Limit, query.Offset = page.limit, page.offset
			res, err := s.api.ListProducts(cmd.Context(), query)
			if err != nil {
				return err
			}
			return s.out.emit(res, func(w io.Writer) { writeProducts(w, res) })
		},
	}
	cmd.Flags().StringVar(&query.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&query.Search, "search", "", "search product names")
	page.bind(cmd.Flags())
	return cmd
}

func newProductsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
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
			p, err := s.api.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return s.out.emit(p, func(w io.Writer) { writeProduct(w, *p) })
		},
	}
}

func newProductsMineCommand(opts *RootOptions) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List your own listings (farmers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			res, err := s.api.MyProducts(cmd.Context(), page.limit, page.offset)
			if err != nil {
				return err
			}
			return s.out.emit(res, func(w io.Writer) { writeProducts(w, res) })
		},
	}
	page.bind(cmd.Flags())
	return cmd
}

// productFlags are shared by create and update. Update only sends flags the
// user actually set.
type productFlags struct {
	name          string
	category      string
	unit          string
	price         string
	discountPrice string
	clearDiscount bool
	quantity      string
	description   string
	images        []string
}

func (p *productFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&p.name, "name", "", "product name")
	fs.StringVar(&p.category, "category", "", "category (FRUITS|VEGETABLES|GRAINS|DAIRY|MEAT|HERBS|OTHER)")
	fs.StringVar(&p.unit, "unit", "", "selling unit (KG|G|L|PCS|DZ|QTL)")
	fs.StringVar(&p.price, "price", "", "price per unit, e.g. 40.00")
	fs.StringVar(&p.discountPrice, "discount-price", "", "discounted price per unit")
	fs.StringVar(&p.quantity, "quantity", "", "available stock")
	fs.StringVar(&p.description, "description", "", "free-text description")
	fs.StringSliceVar(&p.images, "image", nil, "image URL (repeatable)")
}

func (p *productFlags) input(fs *pflag.FlagSet) (client.ProductInput, error) {
	var in client.ProductInput
	if fs.Changed("name") {
		in.Name = &p.name
	}
	if fs.Changed("category") {
		v := strings.ToUpper(p.category)
		in.Category = &v
	}
	if fs.Changed("unit") {
		v := strings.ToUpper(p.unit)
		in.Unit = &v
	}
	if fs.Changed("description") {
		in.Description = &p.description
	}
	if fs.Changed("image") {
		in.ImageURLs = p.images
	}
	var err error
	if in.Price, err = decimalFlag(fs, "price", p.price); err != nil {
		return in, err
	}
	if in.DiscountPrice, err = decimalFlag(fs, "discount-price", p.discountPrice); err != nil {
		return in, err
	}
	if in.Quantity, err = decimalFlag(fs, "quantity", p.quantity); err != nil {
		return in, err
	}
	in.ClearDiscount = p.clearDiscount
	return in, nil
}

func decimalFlag(fs *pflag.FlagSet, name, raw string) (*decimal.Decimal, error) {
	if !fs.Changed(name) {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return &d, nil
}

func newProductsCreateCommand(opts *RootOptions) *cobra.Command {
	var flags productFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "List a new product (farmers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd.Flags())
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			p, err := s.api.CreateProduct(cmd.Context(), in)
			if err != nil {
				return err
			}
			return s.out.emit(p, func(w io.Writer) {
				fmt.Fprint(w, "Created ")
				writeProduct(w, *p)
			})
		},
	}
	flags.bind(cmd.Flags())
	for _, name := range []string{"name", "category", "unit", "price", "quantity"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newProductsUpdateCommand(opts *RootOptions) *cobra.Command {
	var flags productFlags
	cmd := &cobra.Command{
		Use:   "update <product-id>",
		Short: "Change fields of one of your listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in, err := flags.input(cmd.Flags())
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			p, err := s.api.UpdateProduct(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return s.out.emit(p, func(w io.Writer) {
				fmt.Fprint(w, "Updated ")
				writeProduct(w, *p)
			})
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().BoolVar(&flags.clearDiscount, "clear-discount", false, "remove the discount price")
	return cmd
}

func newProductsDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Remove one of your listings",
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
			if err := s.requireLogin(); err != nil {
				return err
			}
			if err := s.api.DeleteProduct(cmd.Context(), id); err != nil {
				return err
			}
			s.out.message("Product deleted.")
			return nil
		},
	}
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
