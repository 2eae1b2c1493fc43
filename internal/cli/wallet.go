package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/pkg/client"
)

func newWalletCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Check the balance, history and top up",
	}
	cmd.AddCommand(newWalletBalanceCommand(opts))
	cmd.AddCommand(newWalletTransactionsCommand(opts))
	cmd.AddCommand(newWalletSummaryCommand(opts))
	cmd.AddCommand(newWalletAddMoneyCommand(opts))
	return cmd
}

func newWalletBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			wallet, err := s.api.WalletBalance(cmd.Context())
			if err != nil {
				return err
			}
			return s.out.emit(wallet, func(w io.Writer) {
				fmt.Fprintf(w, "Balance: %s\n", amount(wallet.Balance))
			})
		},
	}
}

func newWalletTransactionsCommand(opts *RootOptions) *cobra.Command {
	var (
		query client.TransactionQuery
		page  pageFlags
	)
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List wallet history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			query.Type = strings.ToUpper(query.Type)
			query.Limit, query.Offset = page.limit, page.offset
			res, err := s.api.WalletTransactions(cmd.Context(), query)
			if err != nil {
				return err
			}
			return s.out.emit(res, func(w io.Writer) { writeTransactions(w, res) })
		},
	}
	cmd.Flags().StringVar(&query.Type, "type", "", "CREDIT, DEBIT or a transaction type such as TOP_UP")
	page.bind(cmd.Flags())
	return cmd
}

func newWalletSummaryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show lifetime credit and debit totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			sum, err := s.api.WalletSummary(cmd.Context())
			if err != nil {
				return err
			}
			return s.out.emit(sum, func(w io.Writer) {
				fmt.Fprintf(w, "Balance: %s\n", amount(sum.Balance))
				fmt.Fprintf(w, "Credited: %s\n", amount(sum.TotalCredit))
				fmt.Fprintf(w, "Debited: %s\n", amount(sum.TotalDebit))
				fmt.Fprintf(w, "Transactions: %d\n", sum.TransactionCount)
			})
		},
	}
}

func newWalletAddMoneyCommand(opts *RootOptions) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "add-money <amount>",
		Short: "Top up the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.requireLogin(); err != nil {
				return err
			}
			tx, err := s.api.AddMoney(cmd.Context(), client.AddMoneyRequest{
				Amount:        amt,
				PaymentMethod: strings.ToUpper(method),
			}, opts.NewKey())
			if err != nil {
				return err
			}
			return s.out.emit(tx, func(w io.Writer) {
				fmt.Fprintf(w, "Added %s, balance %s\n", amount(tx.Amount), amount(tx.BalanceAfter))
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", "UPI", "funding method (UPI|CARD|NET_BANKING)")
	return cmd
}
