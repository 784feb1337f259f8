package cmd

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/batch"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file|folder]...",
	Short: "Extract files and merge them into the user's dataset",
	Long: `Extract every file in parallel, merge the results in the order given into the
user's dataset and save it once.

Files that fail are listed at the end; the others are still saved. If every
file fails nothing is saved. Uploading the same invoice twice is harmless:
invoices whose serial number already exists are skipped.

Optional environment variables:
  BATCH_WORKERS - Number of parallel extraction calls (default: 12)`,
	Example: `  # Upload two invoices
  swipe-invoice upload --user alice scan1.pdf scan2.jpg

  # Upload a whole folder
  swipe-invoice upload --user alice ./invoices`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().Bool("verbose", false, "Show merge details")
}

func runUpload(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("upload")

	verbose, _ := cmd.Flags().GetBool("verbose")
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := extraction.LoadFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No supported files found.")
		return nil
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	gw, err := openGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	processor, err := createProcessor(ctx, cfg, gw, log)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	processor.OnProgress(func(done, total int, r extraction.Result) {
		mu.Lock()
		defer mu.Unlock()
		if r.Succeeded() {
			fmt.Printf("[%d/%d] %s - ✅ (%d invoices)\n", done, total, r.Filename, len(r.Payload.Invoices))
			return
		}
		fmt.Printf("[%d/%d] %s - ❌ (%s)\n", done, total, r.Filename, describeError(r.Error))
	})

	fmt.Printf("Processing %d files with %d parallel workers...\n\n", len(files), cfg.BatchWorkers)

	report, err := processor.Process(ctx, user, files)
	fmt.Println()

	var allFailed *batch.AllFailedError
	if errors.As(err, &allFailed) {
		fmt.Println("Every file failed, the dataset was not changed:")
		for _, f := range allFailed.Failures {
			fmt.Printf("  %s: %s\n", f.Filename, describeError(f.Err))
		}
		return fmt.Errorf("no file could be processed")
	}
	if err != nil {
		return fmt.Errorf("upload failed: %s", describeError(err))
	}

	printReport(report, verbose)

	log.Info().
		Str("user_id", user).
		Int("total", report.Total).
		Int("processed", report.Processed).
		Int("failed", len(report.Failures)).
		Msg("Upload completed")
	return nil
}

func printReport(report *batch.Report, verbose bool) {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println(report.String())
	fmt.Println(strings.Repeat("=", 50))

	stats := report.Stats
	fmt.Printf("Invoices added:   %d\n", stats.InvoicesAdded)
	fmt.Printf("Products added:   %d (updated %d)\n", stats.ProductsAdded, stats.ProductsUpdated)
	fmt.Printf("Customers added:  %d\n", stats.CustomersAdded)
	if len(stats.DuplicateSerials) > 0 {
		fmt.Printf("Already present:  %s\n", strings.Join(stats.DuplicateSerials, ", "))
	}
	if stats.DroppedLineItems > 0 {
		fmt.Printf("Line items dropped (unknown product): %d\n", stats.DroppedLineItems)
	}

	if verbose {
		for _, f := range report.Failures {
			fmt.Printf("  ❌ %s: %s\n", f.Filename, describeError(f.Err))
		}
	}

	summary := reconcile.Summarize(report.Dataset)
	fmt.Println()
	printSummary(summary)
}
