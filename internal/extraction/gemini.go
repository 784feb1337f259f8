package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// DefaultGeminiModel is the model used when GEMINI_MODEL is not set.
const DefaultGeminiModel = "gemini-2.5-flash-preview-09-2025"

// GeminiProvider sends documents to the Gemini generateContent endpoint.
type GeminiProvider struct {
	service *generativelanguage.Service
	model   string
	log     zerolog.Logger
}

// NewGeminiProvider creates a provider authenticated with an API key.
// An empty endpoint uses the public Generative Language API.
func NewGeminiProvider(ctx context.Context, apiKey, model, endpoint string) (*GeminiProvider, error) {
	const op = "NewGeminiProvider"

	if apiKey == "" {
		return nil, NewExtractionError(op, ErrMissingCredentials, "GEMINI_API_KEY is empty")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return NewGeminiProviderWithOptions(ctx, model, opts...)
}

// NewGeminiProviderWithOptions creates a provider with explicit client options (for testing).
func NewGeminiProviderWithOptions(ctx context.Context, model string, opts ...option.ClientOption) (*GeminiProvider, error) {
	const op = "NewGeminiProviderWithOptions"

	service, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, WrapExtractionError(op, err, "failed to create Generative Language client")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	return &GeminiProvider{
		service: service,
		model:   model,
		log:     logger.WithComponent("gemini"),
	}, nil
}

// Name implements Provider.
func (g *GeminiProvider) Name() string {
	return ProviderGemini
}

// Generate makes a single generateContent call for doc.
func (g *GeminiProvider) Generate(ctx context.Context, doc *Document) (*models.RawPayload, error) {
	const op = "GenerateContent"

	parts := []*generativelanguage.Part{{Text: promptFor(doc)}}
	if doc.Kind == KindSpreadsheet {
		parts = append(parts, &generativelanguage.Part{Text: doc.Text})
	} else {
		parts = append(parts, &generativelanguage.Part{
			InlineData: &generativelanguage.Blob{
				MimeType: doc.MimeType,
				Data:     base64.StdEncoding.EncodeToString(doc.Data),
			},
		})
	}

	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{Parts: parts}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   ResponseSchema(),
		},
	}

	g.log.Debug().
		Str("file", doc.Name).
		Str("kind", string(doc.Kind)).
		Str("model", g.model).
		Msg("Sending document to Gemini")

	resp, err := g.service.Models.GenerateContent(g.model, req).Context(ctx).Do()
	if err != nil {
		return nil, classifyGeminiError(op, err)
	}

	text, ok := geminiText(resp)
	if !ok {
		return nil, NewExtractionError(op, ErrMalformedResponse, "response has no candidate text")
	}
	payload, err := models.ParseRawPayload(text)
	if err != nil {
		return nil, NewExtractionError(op, ErrMalformedResponse, fmt.Sprintf("candidate text is not valid JSON: %v", err))
	}
	return payload, nil
}

func geminiText(resp *generativelanguage.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", false
	}
	text := content.Parts[0].Text
	return text, strings.TrimSpace(text) != ""
}

func classifyGeminiError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return statusError(op, apiErr.Code, apiErr.Message)
	}

	// A 2xx response whose body is not JSON fails while decoding
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewExtractionError(op, ErrMalformedResponse, err.Error())
	}

	return transportError(op, err)
}
