package extraction

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// DocumentAIConfig holds configuration for the Document AI invoice parser.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the invoice parser processor ID.
	ProcessorID string

	// Timeout is the maximum time to wait for one call. Default: 60 seconds.
	Timeout time.Duration
}

// documentProcessor is the part of the Document AI client used here.
type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

// DocumentAIProvider maps the entities of the Document AI invoice parser
// onto a raw payload. It handles PDFs and images; spreadsheets are rejected.
type DocumentAIProvider struct {
	client documentProcessor
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIProvider creates a provider with credentials from environment.
func NewDocumentAIProvider(ctx context.Context, config DocumentAIConfig) (*DocumentAIProvider, error) {
	const op = "NewDocumentAIProvider"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewExtractionError(op, ErrMissingCredentials, "project and processor id are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		clientOptions = append(clientOptions, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapExtractionError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return newDocumentAIProvider(client, config), nil
}

func newDocumentAIProvider(client documentProcessor, config DocumentAIConfig) *DocumentAIProvider {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAIProvider{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// Name implements Provider.
func (p *DocumentAIProvider) Name() string {
	return ProviderDocumentAI
}

// Generate makes a single ProcessDocument call for doc.
func (p *DocumentAIProvider) Generate(ctx context.Context, doc *Document) (*models.RawPayload, error) {
	const op = "ProcessDocument"

	if doc.Kind == KindSpreadsheet {
		return nil, NewExtractionError(op, ErrUnsupportedFormat, "Document AI does not read spreadsheets")
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/processors/%s", p.config.ProjectID, p.config.Location, p.config.ProcessorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: doc.MimeType,
			},
		},
	})
	if err != nil {
		return nil, classifyGRPCError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, NewExtractionError(op, ErrMalformedResponse, "no document in response")
	}

	return p.payloadFromDocument(resp.GetDocument()), nil
}

// payloadFromDocument turns invoice parser entities into one invoice with
// its customer and products.
func (p *DocumentAIProvider) payloadFromDocument(doc *documentaipb.Document) *models.RawPayload {
	var (
		invoice  models.RawInvoice
		customer models.RawCustomer
		products []models.RawProduct
		netTotal float64
		taxTotal float64
	)

	for _, entity := range doc.GetEntities() {
		value := strings.TrimSpace(entity.GetMentionText())

		p.log.Debug().
			Str("entity_type", entity.GetType()).
			Str("value", value).
			Float32("confidence", entity.GetConfidence()).
			Msg("Processing Document AI entity")

		switch entity.GetType() {
		case "invoice_id":
			invoice.SerialNumber = value
		case "invoice_date":
			invoice.InvoiceDate = entityDate(entity)
		case "receiver_name":
			customer.Name = value
		case "receiver_phone":
			customer.Phone = value
		case "amount_due":
			if amount, ok := entityMoney(entity); ok {
				invoice.AmountPending = &amount
			}
		case "net_amount":
			netTotal, _ = entityMoney(entity)
		case "total_tax_amount":
			taxTotal, _ = entityMoney(entity)
		case "line_item":
			if product, qty, ok := lineItemProduct(entity); ok {
				products = append(products, product)
				invoice.LineItems = append(invoice.LineItems, models.RawLineItem{ProductID: product.ID, Qty: qty})
			}
		}
	}

	// The parser reports tax per document; spread it as one rate over all products
	if netTotal > 0 && taxTotal > 0 {
		rate := math.Round(taxTotal/netTotal*10000) / 100
		for i := range products {
			products[i].Tax = &rate
		}
	}

	payload := &models.RawPayload{Products: products}
	if customer.Name != "" {
		customer.ID = models.Slug("customer", customer.Name)
		customer.CompanyName = customer.Name
		invoice.CustomerID = customer.ID
		invoice.CompanyName = customer.CompanyName
		payload.Customers = []models.RawCustomer{customer}
	}
	if invoice.SerialNumber != "" || len(invoice.LineItems) > 0 {
		payload.Invoices = []models.RawInvoice{invoice}
	}
	return payload
}

// lineItemProduct reads the line_item/* properties of one line.
func lineItemProduct(entity *documentaipb.Document_Entity) (models.RawProduct, *float64, bool) {
	var product models.RawProduct
	var code string
	var qty *float64
	for _, prop := range entity.GetProperties() {
		value := strings.TrimSpace(prop.GetMentionText())
		switch prop.GetType() {
		case "line_item/description":
			product.Name = value
		case "line_item/product_code":
			code = value
		case "line_item/quantity":
			if n, err := parseAmount(value); err == nil {
				qty = &n
			}
		case "line_item/unit_price":
			if amount, ok := entityMoney(prop); ok {
				product.UnitPrice = &amount
			}
		}
	}

	key := code
	if key == "" {
		key = product.Name
	}
	product.ID = models.Slug("product", key)
	if product.ID == "" {
		return models.RawProduct{}, nil, false
	}
	product.Quantity = qty
	return product, qty, true
}

// entityDate prefers the normalized date and falls back to the mention text.
func entityDate(entity *documentaipb.Document_Entity) string {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil && d.GetYear() > 0 {
		return fmt.Sprintf("%04d-%02d-%02d", d.GetYear(), d.GetMonth(), d.GetDay())
	}
	return strings.TrimSpace(entity.GetMentionText())
}

// entityMoney prefers the normalized money value and falls back to parsing the mention text.
func entityMoney(entity *documentaipb.Document_Entity) (float64, bool) {
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil {
		return float64(m.GetUnits()) + float64(m.GetNanos())/1e9, true
	}
	amount, err := parseAmount(entity.GetMentionText())
	if err != nil {
		return 0, false
	}
	return amount, true
}

// parseAmount parses amounts written in either German (1.234,50) or English
// (1,234.50) notation, ignoring currency symbols.
func parseAmount(amountStr string) (float64, error) {
	cleaned := strings.TrimSpace(amountStr)
	for _, symbol := range []string{" ", "€", "$", "₹", "£", "EUR", "USD", "INR", "Rs."} {
		cleaned = strings.ReplaceAll(cleaned, symbol, "")
	}

	switch {
	case strings.Contains(cleaned, ".") && strings.Contains(cleaned, ","):
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Contains(cleaned, ","):
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", amountStr, cleaned)
	}
	return amount, nil
}

// classifyGRPCError maps gRPC status codes onto the extraction taxonomy.
func classifyGRPCError(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return transportError(op, err)
	}
	details := fmt.Sprintf("%s: %s", st.Code(), st.Message())
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Unknown:
		return NewExtractionError(op, ErrTransport, details)
	default:
		return NewExtractionError(op, ErrClient, details)
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIProvider) Close() error {
	if c, ok := p.client.(*documentai.DocumentProcessorClient); ok {
		return c.Close()
	}
	return nil
}
