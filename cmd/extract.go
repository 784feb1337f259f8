package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|folder]...",
	Short: "Extract raw invoices, products and customers without saving them",
	Long: `Send each file to the extraction service and print the raw payloads as JSON.

Nothing is merged or saved; use this to check what the service returns for a
document before uploading it.

Required environment variables (depending on EXTRACTION_PROVIDER):
  GEMINI_API_KEY              - for the gemini provider (default)
  OPENAI_API_KEY              - for the openai provider
  GOOGLE_CLOUD_PROJECT,
  DOCUMENT_AI_PROCESSOR_ID    - for the documentai provider`,
	Example: `  # Print the payload of one invoice
  swipe-invoice extract invoice.pdf

  # Extract a folder and save the result
  swipe-invoice extract ./invoices -o payloads.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

type extractOutput struct {
	File    string             `json:"file"`
	Payload *models.RawPayload `json:"payload,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")

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

	adapter, err := createExtractor(ctx, cfg, log)
	if err != nil {
		return err
	}

	log.Info().
		Int("files", len(files)).
		Str("provider", cfg.ExtractionProvider).
		Msg("Starting extraction")

	results := extraction.ExtractAll(ctx, adapter, files, cfg.BatchWorkers, log, nil)

	out := make([]extractOutput, len(results))
	failed := 0
	for i, r := range results {
		out[i] = extractOutput{File: r.Filename, Payload: r.Payload}
		if r.Error != nil {
			out[i].Error = describeError(r.Error)
			failed++
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().Str("output_file", outputPath).Int("bytes", len(data)).Msg("Payloads written to file")
	} else {
		fmt.Println(string(data))
	}

	if failed == len(results) {
		return fmt.Errorf("all %d files failed", failed)
	}
	return nil
}
