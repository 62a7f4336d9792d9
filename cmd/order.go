package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/quote"
)

var orderPayStatus string

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inspect orders and record payments",
}

var orderStatusCmd = &cobra.Command{
	Use:   "status <order-number>",
	Short: "Print an order with its quotation and policy status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		v, err := initQuotes(st).GetOrderStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

var orderPayCmd = &cobra.Command{
	Use:   "pay <order-id>",
	Short: "Record a payment result (paid, failed or refunded) for an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		o, err := initQuotes(st).UpdateOrderPayment(ctx, quote.PaymentInput{
			OrderID: args[0],
			Status:  model.PaymentStatus(orderPayStatus),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	orderPayCmd.Flags().StringVar(&orderPayStatus, "status", "paid", "new payment status: paid, failed or refunded")
	orderCmd.AddCommand(orderStatusCmd, orderPayCmd)
	rootCmd.AddCommand(orderCmd)
}
