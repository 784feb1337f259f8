package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "swipe-invoice",
	Short: "Extract invoices, products and customers from documents into one dataset",
	Long: `swipe-invoice reads invoice images, PDFs and spreadsheets, extracts invoices,
products and customers with an AI extraction service and reconciles them into
one persistent dataset per user.

Re-uploading a document never duplicates an invoice, product stock accumulates
across uploads, and customer totals always equal the sum of their invoices.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("swipe-invoice executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("user", os.Getenv("USER_ID"), "User whose dataset to use (default: $USER_ID)")
	rootCmd.PersistentFlags().Int("timeout", 600, "Timeout in seconds")
}
