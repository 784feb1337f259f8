package reconcile

import (
	"fmt"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestEngine() *Engine {
	return NewEngineWithIDs(sequentialIDs())
}

// samplePayload is one invoice for John buying 2 widgets at 100 with 18% tax.
func samplePayload() *models.RawPayload {
	return &models.RawPayload{
		Customers: []models.RawCustomer{
			{ID: "c1", Name: "John Doe", Phone: "555-0100", CompanyName: "Acme"},
		},
		Products: []models.RawProduct{
			{ID: "p1", Name: "Widget", Brand: "WidgetCo", Quantity: models.Float(5), UnitPrice: models.Float(100), Tax: models.Float(18)},
		},
		Invoices: []models.RawInvoice{
			{
				SerialNumber: "INV-1",
				InvoiceDate:  "2024-01-15",
				CustomerID:   "c1",
				Status:       "Paid",
				LineItems:    []models.RawLineItem{{ProductID: "p1", Qty: models.Float(2)}},
			},
		},
	}
}

// assertAggregates checks that every customer total equals the sum of its invoices.
func assertAggregates(t *testing.T, ds models.Dataset) {
	t.Helper()
	sums := map[string]float64{}
	for _, inv := range ds.Invoices {
		sums[inv.CustomerID] += inv.TotalAmount
	}
	for id, c := range ds.Customers {
		assert.InDelta(t, sums[id], c.TotalPurchaseAmount, 1e-9, "customer %s aggregate\n%s", id, spew.Sdump(ds))
	}
}

func TestMergeNewPayload(t *testing.T) {
	ds, stats := newTestEngine().Merge(models.NewDataset(), samplePayload())

	require.Len(t, ds.Invoices, 1)
	inv := ds.Invoices[0]
	assert.Equal(t, "id-1", inv.ID)
	assert.Equal(t, "INV-1", inv.SerialNumber)
	assert.Equal(t, "John Doe", inv.CustomerName)
	assert.Equal(t, "Acme", inv.CompanyName)
	assert.Equal(t, models.StatusPaid, inv.Status)
	assert.False(t, inv.Missing)
	assert.InDelta(t, 236, inv.TotalAmount, 1e-9)

	require.Len(t, inv.LineItems, 1)
	li := inv.LineItems[0]
	assert.Equal(t, "id-2", li.ID)
	assert.Equal(t, "p1", li.ProductID)
	assert.Equal(t, "Widget", li.ProductName)
	assert.Equal(t, 100.0, li.UnitPrice)
	assert.Equal(t, 18.0, li.Tax)
	assert.InDelta(t, 236, li.TotalAmount, 1e-9)

	assert.InDelta(t, 236, ds.Customers["c1"].TotalPurchaseAmount, 1e-9)
	assert.False(t, ds.Customers["c1"].Missing)
	assert.Equal(t, 5.0, *ds.Products["p1"].Quantity)

	assert.Equal(t, MergeStats{CustomersAdded: 1, ProductsAdded: 1, InvoicesAdded: 1}, stats)
	assertAggregates(t, ds)
}

func TestMergeIdempotentResubmission(t *testing.T) {
	engine := newTestEngine()
	first, _ := engine.Merge(models.NewDataset(), samplePayload())

	resubmit := samplePayload()
	resubmit.Products = nil
	second, stats := engine.Merge(first, resubmit)

	assert.Equal(t, first.Invoices, second.Invoices)
	assert.Equal(t, first.Customers, second.Customers)
	assert.Equal(t, []string{"INV-1"}, stats.DuplicateSerials)
	assert.Zero(t, stats.InvoicesAdded)
	assertAggregates(t, second)
}

func TestMergeResubmissionStillAccumulatesStock(t *testing.T) {
	engine := newTestEngine()
	first, _ := engine.Merge(models.NewDataset(), samplePayload())
	second, _ := engine.Merge(first, samplePayload())

	require.Len(t, second.Invoices, 1)
	assert.InDelta(t, 236, second.Customers["c1"].TotalPurchaseAmount, 1e-9)
	assert.Equal(t, 10.0, *second.Products["p1"].Quantity)
}

func TestMergeQuantityAccumulates(t *testing.T) {
	engine := newTestEngine()
	payload := func(qty float64) *models.RawPayload {
		return &models.RawPayload{Products: []models.RawProduct{
			{ID: "P", Name: "Bolt", Quantity: models.Float(qty), UnitPrice: models.Float(1)},
		}}
	}

	ds, _ := engine.Merge(models.NewDataset(), payload(5))
	ds, stats := engine.Merge(ds, payload(7))

	assert.Equal(t, 12.0, *ds.Products["P"].Quantity)
	assert.Equal(t, 1, stats.ProductsUpdated)
}

func TestMergeBackfillsOnlyAbsentProductFields(t *testing.T) {
	engine := newTestEngine()
	ds, _ := engine.Merge(models.NewDataset(), &models.RawPayload{Products: []models.RawProduct{
		{ID: "p1", Name: "Widget", Quantity: models.Float(1)},
	}})
	require.True(t, ds.Products["p1"].Missing)

	ds, _ = engine.Merge(ds, &models.RawPayload{Products: []models.RawProduct{
		{ID: "p1", Name: "Renamed", Brand: "WidgetCo", UnitPrice: models.Float(10), Tax: models.Float(5)},
	}})

	p := ds.Products["p1"]
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, "WidgetCo", p.Brand)
	require.NotNil(t, p.UnitPrice)
	assert.Equal(t, 10.0, *p.UnitPrice)
	assert.Equal(t, 5.0, p.Tax)
	assert.Equal(t, 1.0, *p.Quantity)
	assert.False(t, p.Missing)
}

func TestMergeCustomerFirstWriteWins(t *testing.T) {
	engine := newTestEngine()
	ds, _ := engine.Merge(models.NewDataset(), samplePayload())

	ds, stats := engine.Merge(ds, &models.RawPayload{Customers: []models.RawCustomer{
		{ID: "c1", Name: "Someone Else", Phone: "999"},
	}})

	assert.Equal(t, "John Doe", ds.Customers["c1"].Name)
	assert.Equal(t, "555-0100", ds.Customers["c1"].Phone)
	assert.Zero(t, stats.CustomersAdded)
}

func TestMergeDropsDanglingLineItems(t *testing.T) {
	payload := samplePayload()
	payload.Invoices[0].LineItems = append(payload.Invoices[0].LineItems,
		models.RawLineItem{ProductID: "p404", Qty: models.Float(3)})

	ds, stats := newTestEngine().Merge(models.NewDataset(), payload)

	require.Len(t, ds.Invoices[0].LineItems, 1)
	assert.Equal(t, "p1", ds.Invoices[0].LineItems[0].ProductID)
	assert.InDelta(t, 236, ds.Invoices[0].TotalAmount, 1e-9)
	assert.Equal(t, 1, stats.DroppedLineItems)
	assertAggregates(t, ds)
}

func TestMergeInvoiceWithOnlyDanglingItemsIsKept(t *testing.T) {
	payload := samplePayload()
	payload.Products = nil
	payload.Invoices[0].LineItems = []models.RawLineItem{{ProductID: "p404", Qty: models.Float(1)}}

	ds, _ := newTestEngine().Merge(models.NewDataset(), payload)

	require.Len(t, ds.Invoices, 1)
	assert.Empty(t, ds.Invoices[0].LineItems)
	assert.NotNil(t, ds.Invoices[0].LineItems)
	assert.Zero(t, ds.Invoices[0].TotalAmount)
}

func TestMergeLineMath(t *testing.T) {
	tests := []struct {
		name     string
		discount *float64
		want     float64
	}{
		{name: "no discount", want: 236},
		{name: "ten percent discount", discount: models.Float(10), want: 212.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := samplePayload()
			payload.Products[0].Discount = tt.discount

			ds, _ := newTestEngine().Merge(models.NewDataset(), payload)

			assert.InDelta(t, tt.want, ds.Invoices[0].LineItems[0].TotalAmount, 1e-9)
			assert.InDelta(t, tt.want, ds.Invoices[0].TotalAmount, 1e-9)
			assert.InDelta(t, tt.want, ds.Customers["c1"].TotalPurchaseAmount, 1e-9)
		})
	}
}

func TestMergeUnknownCustomer(t *testing.T) {
	payload := samplePayload()
	payload.Customers = nil
	payload.Invoices[0].CustomerID = "c9"

	ds, _ := newTestEngine().Merge(models.NewDataset(), payload)

	inv := ds.Invoices[0]
	assert.Equal(t, models.UnknownCustomer, inv.CustomerName)
	assert.Equal(t, models.UnknownCustomer, inv.CompanyName)
	assert.True(t, inv.Missing)
	assert.Empty(t, ds.Customers)
}

func TestMergeLateCustomerPicksUpExistingInvoices(t *testing.T) {
	engine := newTestEngine()
	payload := samplePayload()
	customers := payload.Customers
	payload.Customers = nil

	ds, _ := engine.Merge(models.NewDataset(), payload)
	require.True(t, ds.Invoices[0].Missing)

	ds, _ = engine.Merge(ds, &models.RawPayload{Customers: customers})

	assert.InDelta(t, 236, ds.Customers["c1"].TotalPurchaseAmount, 1e-9)
	assertAggregates(t, ds)

	inv := ds.Invoices[0]
	assert.Equal(t, "John Doe", inv.CustomerName)
	assert.Equal(t, "Acme", inv.CompanyName)
	assert.False(t, inv.Missing)
	assert.Equal(t, models.IsInvoiceMissing(inv, ds.Customers), inv.Missing)
}

func TestMergeMissingFlags(t *testing.T) {
	engine := newTestEngine()
	ds, _ := engine.Merge(models.NewDataset(), &models.RawPayload{
		Customers: []models.RawCustomer{{ID: "c1", Name: "John", CompanyName: "Acme"}},
		Products:  []models.RawProduct{{ID: "p1", Name: "Widget", UnitPrice: models.Float(10)}},
		Invoices: []models.RawInvoice{{
			SerialNumber: "INV-1",
			CustomerID:   "c1",
			LineItems:    []models.RawLineItem{{ProductID: "p1"}},
		}},
	})

	assert.True(t, ds.Customers["c1"].Missing, "phone absent")
	assert.True(t, ds.Products["p1"].Missing, "quantity absent")
	assert.True(t, ds.Invoices[0].Missing, "date absent")
	assert.True(t, ds.Invoices[0].LineItems[0].Missing, "qty absent")
	assert.Zero(t, ds.Invoices[0].LineItems[0].Qty)

	phone := "555-0100"
	ds, err := engine.UpdateCustomer(ds, "c1", CustomerPatch{Phone: &phone})
	require.NoError(t, err)
	assert.False(t, ds.Customers["c1"].Missing)
}

func TestMergeWithinBatchOrder(t *testing.T) {
	engine := newTestEngine()
	fileA := &models.RawPayload{Products: []models.RawProduct{
		{ID: "p1", Name: "Widget", Quantity: models.Float(5), UnitPrice: models.Float(100)},
	}}
	fileB := &models.RawPayload{
		Products: []models.RawProduct{{ID: "p1", Quantity: models.Float(7)}},
		Invoices: []models.RawInvoice{{
			SerialNumber: "INV-2",
			LineItems:    []models.RawLineItem{{ProductID: "p1", Qty: models.Float(1)}},
		}},
	}

	ds, _ := engine.Merge(models.NewDataset(), fileA)
	ds, _ = engine.Merge(ds, fileB)

	assert.Equal(t, 12.0, *ds.Products["p1"].Quantity)
	require.Len(t, ds.Invoices[0].LineItems, 1)
	assert.InDelta(t, 100, ds.Invoices[0].TotalAmount, 1e-9)
}

func TestMergeDoesNotModifyInput(t *testing.T) {
	engine := newTestEngine()
	current, _ := engine.Merge(models.NewDataset(), samplePayload())
	before := current.Clone()

	next := samplePayload()
	next.Invoices[0].SerialNumber = "INV-2"
	_, _ = engine.Merge(current, next)

	assert.Equal(t, before, current)
}

func TestMergeSlugIDs(t *testing.T) {
	ds, stats := newTestEngine().Merge(models.NewDataset(), &models.RawPayload{
		Customers: []models.RawCustomer{{Name: "Jane Roe"}, {}},
		Products:  []models.RawProduct{{Name: "USB Cable"}},
	})

	assert.Contains(t, ds.Customers, "customer_jane_roe")
	assert.Contains(t, ds.Products, "product_usb_cable")
	assert.Equal(t, 1, stats.SkippedEntities)
}

func TestMergeNilPayload(t *testing.T) {
	ds, stats := newTestEngine().Merge(models.Dataset{}, nil)

	assert.NotNil(t, ds.Invoices)
	assert.NotNil(t, ds.Products)
	assert.NotNil(t, ds.Customers)
	assert.Equal(t, MergeStats{}, stats)
}

func TestMergeStatsAdd(t *testing.T) {
	total := MergeStats{InvoicesAdded: 1, DuplicateSerials: []string{"A"}}
	total.Add(MergeStats{InvoicesAdded: 2, DroppedLineItems: 1, DuplicateSerials: []string{"B"}})

	assert.Equal(t, 3, total.InvoicesAdded)
	assert.Equal(t, 1, total.DroppedLineItems)
	assert.Equal(t, []string{"A", "B"}, total.DuplicateSerials)
}

func ExampleMergeDataset() {
	ds := MergeDataset(models.NewDataset(), &models.RawPayload{
		Customers: []models.RawCustomer{{ID: "c1", Name: "John", Phone: "555", CompanyName: "Acme"}},
		Products: []models.RawProduct{
			{ID: "p1", Name: "Widget", Quantity: models.Float(5), UnitPrice: models.Float(100), Tax: models.Float(18), Discount: models.Float(10)},
		},
		Invoices: []models.RawInvoice{{
			SerialNumber: "INV-1",
			InvoiceDate:  "2024-01-15",
			CustomerID:   "c1",
			LineItems:    []models.RawLineItem{{ProductID: "p1", Qty: models.Float(2)}},
		}},
	})

	fmt.Printf("%s %.2f\n", ds.Invoices[0].SerialNumber, ds.Invoices[0].TotalAmount)
	fmt.Printf("%s %.2f\n", ds.Customers["c1"].Name, ds.Customers["c1"].TotalPurchaseAmount)
	// Output:
	// INV-1 212.40
	// John 212.40
}
