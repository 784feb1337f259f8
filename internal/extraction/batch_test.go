package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// fakeExtractor fails files whose name contains "bad" and finishes earlier
// files last so completion order differs from submission order.
type fakeExtractor struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (f *fakeExtractor) Extract(_ context.Context, file File) (*models.RawPayload, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	var n int
	_, _ = fmt.Sscanf(file.Name, "%d", &n)
	time.Sleep(time.Duration(5-n) * time.Millisecond)

	if strings.Contains(file.Name, "bad") {
		return nil, NewExtractionError("Extract", ErrUnsupportedFormat, file.Name)
	}
	return &models.RawPayload{Invoices: []models.RawInvoice{{SerialNumber: file.Name}}}, nil
}

func TestExtractAllKeepsSubmissionOrder(t *testing.T) {
	files := []File{{Name: "1.png"}, {Name: "2-bad.txt"}, {Name: "3.png"}, {Name: "4.png"}}
	extractor := &fakeExtractor{}

	var progressDone []int
	results := ExtractAll(context.Background(), extractor, files, 2, zerolog.Nop(), func(done, total int, r Result) {
		assert.Equal(t, 4, total)
		progressDone = append(progressDone, done)
	})

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, files[i].Name, r.Filename)
	}
	assert.True(t, results[0].Succeeded())
	assert.False(t, results[1].Succeeded())
	assert.ErrorIs(t, results[1].Error, ErrUnsupportedFormat)
	assert.Equal(t, "3.png", results[2].Payload.Invoices[0].SerialNumber)

	assert.Equal(t, []int{1, 2, 3, 4}, progressDone)
	assert.LessOrEqual(t, extractor.maxSeen, 2)
}

func TestExtractAllEdgeCases(t *testing.T) {
	assert.Empty(t, ExtractAll(context.Background(), &fakeExtractor{}, nil, 4, zerolog.Nop(), nil))

	results := ExtractAll(context.Background(), &fakeExtractor{}, []File{{Name: "1.png"}}, 0, zerolog.Nop(), nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded())
}

func TestExtractFromFile(t *testing.T) {
	payload, err := ExtractFromFile(context.Background(), &fakeExtractor{}, "image/png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "upload", payload.Invoices[0].SerialNumber)
}

func TestValidatePayload(t *testing.T) {
	payload := &models.RawPayload{
		Customers: []models.RawCustomer{{ID: "c1", Name: "John"}, {}},
		Products: []models.RawProduct{
			{ID: "p1", Name: "Widget", Discount: models.Float(150)},
			{Name: "Gadget", UnitPrice: models.Float(-3)},
		},
		Invoices: []models.RawInvoice{
			{SerialNumber: "INV-1", CustomerID: "c1", LineItems: []models.RawLineItem{
				{ProductID: "p1", Qty: models.Float(1)},
				{ProductID: "product_gadget"},
			}},
			{SerialNumber: "INV-1", CustomerID: "c2", LineItems: []models.RawLineItem{{ProductID: "p9", Qty: models.Float(1)}}},
			{},
		},
	}

	warnings := ValidatePayload(payload)

	assert.Contains(t, warnings, "customer without id or name")
	assert.Contains(t, warnings, "product p1: discount above 100%")
	assert.Contains(t, warnings, "product product_gadget: negative unitPrice -3.00")
	assert.Contains(t, warnings, `invoice INV-1: product "product_gadget" has no quantity`)
	assert.Contains(t, warnings, "invoice INV-1: serial number repeated in document")
	assert.Contains(t, warnings, "invoice INV-1: customer c2 not in document")
	assert.Contains(t, warnings, `invoice INV-1: product "p9" not in document`)
	assert.Contains(t, warnings, "invoice #3: no serial number")
	assert.Len(t, warnings, 8)

	assert.Empty(t, ValidatePayload(nil))
	assert.Empty(t, ValidatePayload(&models.RawPayload{}))
}
