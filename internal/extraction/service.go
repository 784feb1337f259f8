// Package extraction turns uploaded documents into raw invoice, product and
// customer records using an external AI service.
//
// Supported inputs:
//   - Images (image/*) and PDFs are forwarded as inline base64 attachments
//   - Spreadsheets (xlsx, xlsm, csv) are reduced to CSV text of the first sheet,
//     prefixed with "--- Excel/CSV Data ---"
//   - Anything else fails with ErrUnsupportedFormat before any network call
//
// Providers:
//   - gemini: Generative Language API with a response schema (default)
//   - openai: chat completion in JSON mode; PDFs go through Vision OCR first
//   - documentai: Document AI invoice parser (PDF and images only)
//
// Every provider call is wrapped in a RetryPolicy: 3 attempts with a 1s
// backoff doubling each retry. Only network failures and 5xx responses are
// retried; 4xx responses fail immediately with ErrClient.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/ocr"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// Provider names accepted by EXTRACTION_PROVIDER.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderDocumentAI = "documentai"
)

// Provider makes exactly one call to an extraction service. Errors must
// match the package taxonomy so the retry policy can classify them.
type Provider interface {
	Name() string
	Generate(ctx context.Context, doc *Document) (*models.RawPayload, error)
}

// Extractor turns one file into a raw payload.
type Extractor interface {
	Extract(ctx context.Context, file File) (*models.RawPayload, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string

	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string

	OpenAIAPIKey string
	OpenAIModel  string

	ProjectID             string
	Location              string
	DocumentAIProcessorID string

	Retry RetryPolicy
}

// Adapter prepares files and calls a Provider under a RetryPolicy.
type Adapter struct {
	provider Provider
	retry    RetryPolicy
	log      zerolog.Logger
}

// New creates an Adapter for the provider named in cfg.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	const op = "New"

	var (
		provider Provider
		err      error
	)
	switch cfg.Provider {
	case ProviderGemini, "":
		provider, err = NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEndpoint)
	case ProviderOpenAI:
		// OCR is optional; without it PDFs are rejected per file
		var ocrService ocr.OCRService
		if vision, visionErr := ocr.NewGoogleVisionOCRService(ctx); visionErr == nil {
			ocrService = vision
		} else {
			log := logger.WithComponent("extraction")
			log.Warn().Err(visionErr).Msg("Vision OCR unavailable, PDFs will be rejected")
		}
		provider, err = NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, ocrService)
	case ProviderDocumentAI:
		provider, err = NewDocumentAIProvider(ctx, DocumentAIConfig{
			ProjectID:   cfg.ProjectID,
			Location:    cfg.Location,
			ProcessorID: cfg.DocumentAIProcessorID,
		})
	default:
		return nil, fmt.Errorf("%s: unknown provider %q", op, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return NewAdapter(provider, retry), nil
}

// NewAdapter creates an Adapter with an explicit provider (for testing).
func NewAdapter(provider Provider, retry RetryPolicy) *Adapter {
	return &Adapter{
		provider: provider,
		retry:    retry,
		log:      logger.WithComponent("extraction"),
	}
}

// Extract prepares file and sends it to the provider, retrying transport failures.
func (a *Adapter) Extract(ctx context.Context, file File) (*models.RawPayload, error) {
	const op = "Extract"

	doc, err := PrepareFile(file)
	if err != nil {
		a.log.Warn().Err(err).Str("file", file.Name).Msg("Rejected file before extraction")
		return nil, err
	}

	var payload *models.RawPayload
	err = a.retry.Do(ctx, op, a.log.With().Str("file", file.Name).Logger(), func(ctx context.Context) error {
		p, err := a.provider.Generate(ctx, doc)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s: %s: %w", op, file.Name, err)
		}
		return nil, err
	}
	if payload == nil {
		return nil, NewExtractionError(op, ErrMalformedResponse, "provider returned no payload")
	}

	if warnings := ValidatePayload(payload); len(warnings) > 0 {
		a.log.Warn().
			Str("file", file.Name).
			Strs("warnings", warnings).
			Msg("Extracted payload is inconsistent")
	}

	a.log.Info().
		Str("file", file.Name).
		Str("provider", a.provider.Name()).
		Int("invoices", len(payload.Invoices)).
		Int("products", len(payload.Products)).
		Int("customers", len(payload.Customers)).
		Msg("File extracted")

	return payload, nil
}

// ExtractFromFile is the single-call entry point: it extracts content of the
// given media type with the supplied extractor.
func ExtractFromFile(ctx context.Context, extractor Extractor, mediaType string, content []byte) (*models.RawPayload, error) {
	return extractor.Extract(ctx, File{Name: "upload", MediaType: mediaType, Content: content})
}
