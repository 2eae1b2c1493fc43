package cli

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/pkg/client"
)

func newOrdersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List and act on orders",
	}
	cmd.AddCommand(newOrdersListCommand(opts, "buyer", "Orders you placed", true))
	cmd.AddCommand(newOrdersListCommand(opts, "farmer", "Orders for your products", false))
	cmd.AddCommand(newOrdersShowCommand(opts))
	cmd.AddCommand(newOrderActionCommand(opts, "accept", "Accept a pending order", func(ctx context.Context, api *client.Client, id uuid.UUID, _ string) (*client.Order, error) {
		return api.AcceptOrder(ctx, id)
	}))
	reject := newOrderActionCommand(opts, "reject", "Reject a pending order", func(ctx context.Context, api *client.Client, id uuid.UUID, reason string) (*client.Order, error) {
		return api.RejectOrder(ctx, id, reason)
	})
	reject.Flags().String("reason", "", "why the order is rejected (required)")
	cmd.AddCommand(reject)
	cmd.AddCommand(newOrderActionCommand(opts, "ship", "Mark an accepted order shipped", func(ctx context.Context, api *client.Client, id uuid.UUID, _ string) (*client.Order, error) {
		return api.ShipOrder(ctx, id)
	}))
	cmd.AddCommand(newOrderActionCommand(opts, "deliver", "Mark a shipped order delivered", func(ctx context.Context, api *client.Client, id uuid.UUID, _ string) (*client.Order, error) {
		return api.DeliverOrder(ctx, id)
	}))
	return cmd
}

func newOrdersListCommand(opts *RootOptions, use, short string, buyer bool) *cobra.Command {
	var (
		query client.OrderQuery
		page  pageFlags
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			query.Limit, query.Offset = page.limit, page.offset
			var res *client.Page[client.Order]
			if buyer {
				res, err = s.api.BuyerOrders(cmd.Context(), query)
			} else {
				res, err = s.api.FarmerOrders(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			return s.out.emit(res, func(w io.Writer) { writeOrders(w, res) })
		},
	}
	cmd.Flags().StringVar(&query.Status, "status", "", "filter by status")
	if buyer {
		cmd.Flags().StringVar(&query.Date, "date", "", "only orders placed on this day (YYYY-MM-DD)")
	}
	page.bind(cmd.Flags())
	return cmd
}

func newOrdersShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order",
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
			o, err := s.api.GetOrder(cmd.Context(), id)
			if err != nil {
				return err
			}
			return s.out.emit(o, func(w io.Writer) { writeOrder(w, *o) })
		},
	}
}

type orderAction func(ctx context.Context, api *client.Client, id uuid.UUID, reason string) (*client.Order, error)

func newOrderActionCommand(opts *RootOptions, use, short string, action orderAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <order-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var reason string
			if f := cmd.Flags().Lookup("reason"); f != nil {
				reason = f.Value.String()
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			o, err := action(cmd.Context(), s.api, id, reason)
			if err != nil {
				return err
			}
			return s.out.emit(o, func(w io.Writer) { writeOrder(w, *o) })
		},
	}
}
