package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/ocr"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// DefaultOpenAIModel is the model used when OPENAI_MODEL is not set.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIProvider extracts through the chat completion API. Images are sent as
// data URLs; PDFs are converted to text with OCR first.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	ocr    ocr.OCRService
	log    zerolog.Logger
}

// NewOpenAIProvider creates a provider from an API key. ocrService may be nil,
// in which case PDFs are rejected as unsupported.
func NewOpenAIProvider(apiKey, model string, ocrService ocr.OCRService) (*OpenAIProvider, error) {
	const op = "NewOpenAIProvider"

	if apiKey == "" {
		return nil, NewExtractionError(op, ErrMissingCredentials, "OPENAI_API_KEY is empty")
	}
	return NewOpenAIProviderWithClient(openai.NewClient(apiKey), model, ocrService), nil
}

// NewOpenAIProviderWithClient creates a provider with an explicit client (for testing).
func NewOpenAIProviderWithClient(client *openai.Client, model string, ocrService ocr.OCRService) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		client: client,
		model:  model,
		ocr:    ocrService,
		log:    logger.WithComponent("openai"),
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Generate makes a single chat completion call for doc.
func (p *OpenAIProvider) Generate(ctx context.Context, doc *Document) (*models.RawPayload, error) {
	const op = "CreateChatCompletion"

	user, err := p.userMessage(ctx, doc)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: promptFor(doc) + "\n\n" + JSONShapeHint,
			},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, classifyOpenAIError(op, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, NewExtractionError(op, ErrMalformedResponse, "response has no message content")
	}
	payload, err := models.ParseRawPayload(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, NewExtractionError(op, ErrMalformedResponse, fmt.Sprintf("message content is not valid JSON: %v", err))
	}

	p.log.Debug().
		Str("file", doc.Name).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion finished")

	return payload, nil
}

func (p *OpenAIProvider) userMessage(ctx context.Context, doc *Document) (openai.ChatCompletionMessage, error) {
	const op = "userMessage"

	switch doc.Kind {
	case KindSpreadsheet:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: doc.Text}, nil

	case KindImage:
		dataURL := fmt.Sprintf("data:%s;base64,%s", doc.MimeType, base64.StdEncoding.EncodeToString(doc.Data))
		return openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "Extract the billing data from this document."},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh}},
			},
		}, nil

	case KindPDF:
		if p.ocr == nil {
			return openai.ChatCompletionMessage{}, NewExtractionError(op, ErrUnsupportedFormat, "PDF input needs an OCR service")
		}
		result, err := p.ocr.ProcessPDF(ctx, doc.Data)
		if err != nil {
			return openai.ChatCompletionMessage{}, classifyOCRError(op, err)
		}
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "--- OCR Text ---\n" + result.Text,
		}, nil
	}

	return openai.ChatCompletionMessage{}, NewExtractionError(op, ErrUnsupportedFormat, string(doc.Kind))
}

func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(op, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(op, reqErr.HTTPStatusCode, reqErr.Error())
	}
	return transportError(op, err)
}

// classifyOCRError treats Vision outages as transport failures and everything
// about the document itself as an unsupported file.
func classifyOCRError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, ocr.ErrOCRFailed) {
		return NewExtractionError(op, ErrTransport, err.Error())
	}
	return NewExtractionError(op, ErrUnsupportedFormat, err.Error())
}
