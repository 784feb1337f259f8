package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/batch"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/config"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/store"
)

// commandContext creates a context with the --timeout flag and signal handling
func commandContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs <= 0 {
		timeoutSecs = 600
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// requireUser returns the --user flag or an error when it is empty
func requireUser(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	user = strings.TrimSpace(user)
	if user == "" {
		return "", fmt.Errorf("--user (or USER_ID) is required")
	}
	return user, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func openGateway(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Gateway, error) {
	gw, err := store.Open(ctx, cfg.GetStoreConfig())
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open dataset store")
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	return gw, nil
}

func createExtractor(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*extraction.Adapter, error) {
	if err := cfg.ValidateExtraction(); err != nil {
		return nil, err
	}
	adapter, err := extraction.New(ctx, cfg.GetExtractionConfig())
	if err != nil {
		log.Error().Err(err).Str("provider", cfg.ExtractionProvider).Msg("Failed to create extraction adapter")
		return nil, fmt.Errorf("failed to create extraction adapter: %w", err)
	}
	log.Debug().Str("provider", cfg.ExtractionProvider).Msg("Extraction adapter created")
	return adapter, nil
}

func createProcessor(ctx context.Context, cfg *config.Config, gw store.Gateway, log zerolog.Logger) (*batch.Processor, error) {
	adapter, err := createExtractor(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return batch.NewProcessor(adapter, gw, reconcile.NewEngine(), cfg.BatchWorkers), nil
}

// describeError turns the error taxonomy into a short user-facing reason
func describeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out, try increasing --timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, extraction.ErrUnsupportedFormat):
		return "unsupported file format (use images, PDF, xlsx or csv)"
	case errors.Is(err, extraction.ErrClient):
		return "rejected by the extraction service, check the API key and model"
	case errors.Is(err, extraction.ErrTransport):
		return "extraction service unavailable after retries"
	case errors.Is(err, extraction.ErrMalformedResponse):
		return "extraction service returned an unreadable response"
	case errors.Is(err, store.ErrPersistenceWrite):
		return "could not save the dataset, nothing was changed; try again"
	default:
		return err.Error()
	}
}
