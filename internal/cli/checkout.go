package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/internal/checkout"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/money"
)

func newCheckoutCommand(opts *RootOptions) *cobra.Command {
	var (
		method      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place one order per cart line",
		Long: "Checks the wallet covers the cart total, then places every line as its own order.\n" +
			"Lines that fail stay in the cart so checkout can be retried.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := enums.ParsePaymentMethod(strings.ToUpper(strings.TrimSpace(method)))
			if err != nil {
				return fmt.Errorf("invalid --payment-method %q", method)
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			store, err := s.loadCart(cmd.Context())
			if err != nil {
				return err
			}
			orch, err := checkout.NewOrchestrator(s.api,
				checkout.WithPaymentMethod(pm),
				checkout.WithConcurrency(concurrency),
				checkout.WithKeyFunc(opts.NewKey),
			)
			if err != nil {
				return err
			}

			result, remaining, placeErr := orch.PlaceOrder(cmd.Context(), store)
			var insufficient *checkout.InsufficientWalletBalanceError
			if errors.As(placeErr, &insufficient) {
				fmt.Fprintln(cmd.ErrOrStderr(), insufficient.TopUpHint())
				return placeErr
			}
			// Failed lines carry the keys they were sent with, so the cart is
			// saved even when nothing was placed.
			var partial *checkout.PartialFailureError
			if placeErr == nil || errors.As(placeErr, &partial) {
				if err := s.saveCart(cmd.Context(), remaining); err != nil {
					return err
				}
			}
			if placeErr != nil && len(result.Orders) == 0 {
				return placeErr
			}
			if err := s.out.emit(result.Orders, func(w io.Writer) {
				for _, o := range result.Orders {
					writeOrder(w, o)
				}
				fmt.Fprintf(w, "Placed %d order(s), cart total %s\n", len(result.Orders), money.Format(result.TotalCents))
			}); err != nil {
				return err
			}
			return placeErr
		},
	}
	cmd.Flags().StringVar(&method, "payment-method", string(enums.PaymentMethodWallet), "payment method (WALLET|COD)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum orders in flight")
	return cmd
}
