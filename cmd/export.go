package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/sheets"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the user's dataset to Google Sheets",
	Long: `Replace the Invoices, Products and Customers tabs of a Google Sheet with the
user's dataset. Missing tabs are created.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL to write to (or --sheet)`,
	Example: `  swipe-invoice export --user alice`,
	Args:    cobra.NoArgs,
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("sheet", "", "Google Sheets URL (default: $GOOGLE_SHEET_URL)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	sheetURL, _ := cmd.Flags().GetString("sheet")
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sheetURL == "" {
		sheetURL = cfg.GoogleSheetURL
	}
	if sheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable or --sheet is required")
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	gw, err := openGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	ds, err := gw.Read(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}
	if err := sheetsService.ExportDataset(ctx, ds); err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}

	fmt.Printf("Exported %d invoices, %d products and %d customers\n",
		len(ds.Invoices), len(ds.Products), len(ds.Customers))
	fmt.Printf("URL: %s\n", sheetURL)
	return nil
}
