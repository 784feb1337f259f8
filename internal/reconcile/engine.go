// Package reconcile folds raw extraction payloads into a user's dataset and
// applies field edits, keeping the derived fields consistent.
//
// Every operation takes a Dataset value and returns a new one; the input is
// never modified. Derived fields maintained here:
//   - LineItem.TotalAmount: unitPrice*qty, less discount, plus tax
//   - Invoice.TotalAmount: sum of its line item totals
//   - Customer.TotalPurchaseAmount: sum of that customer's invoice totals
//   - every Missing flag, via the predicates in pkg/models
package reconcile

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// Engine merges payloads and applies edits.
type Engine struct {
	newID func() string
	log   zerolog.Logger
}

// MergeStats describes what a single merge changed.
type MergeStats struct {
	CustomersAdded   int
	ProductsAdded    int
	ProductsUpdated  int
	InvoicesAdded    int
	DuplicateSerials []string // Invoices skipped because their serial number already existed
	DroppedLineItems int      // Line items whose product id did not resolve
	SkippedEntities  int      // Raw customers/products with neither id nor name
}

// Add accumulates other into s.
func (s *MergeStats) Add(other MergeStats) {
	s.CustomersAdded += other.CustomersAdded
	s.ProductsAdded += other.ProductsAdded
	s.ProductsUpdated += other.ProductsUpdated
	s.InvoicesAdded += other.InvoicesAdded
	s.DuplicateSerials = append(s.DuplicateSerials, other.DuplicateSerials...)
	s.DroppedLineItems += other.DroppedLineItems
	s.SkippedEntities += other.SkippedEntities
}

// NewEngine creates an engine that assigns random UUIDs to new invoices and line items.
func NewEngine() *Engine {
	return NewEngineWithIDs(uuid.NewString)
}

// NewEngineWithIDs creates an engine with an explicit id generator (for testing).
func NewEngineWithIDs(newID func() string) *Engine {
	return &Engine{
		newID: newID,
		log:   logger.WithComponent("reconcile"),
	}
}

// MergeDataset merges raw into current with a default engine.
func MergeDataset(current models.Dataset, raw *models.RawPayload) models.Dataset {
	merged, _ := NewEngine().Merge(current, raw)
	return merged
}

// Merge returns current with raw folded in: customers first, then products,
// then invoices, so invoices see the products and customers of the same payload.
func (e *Engine) Merge(current models.Dataset, raw *models.RawPayload) (models.Dataset, MergeStats) {
	ds := current.Clone()
	ds.Normalize()

	var stats MergeStats
	if raw == nil {
		return ds, stats
	}

	e.mergeCustomers(&ds, raw.Customers, &stats)
	e.mergeProducts(&ds, raw.Products, &stats)
	for _, ri := range raw.Invoices {
		e.mergeInvoice(&ds, ri, &stats)
	}

	return ds, stats
}

// mergeCustomers inserts unknown customers. Known ids are left untouched.
func (e *Engine) mergeCustomers(ds *models.Dataset, raws []models.RawCustomer, stats *MergeStats) {
	for _, rc := range raws {
		id := entityID(rc.ID, "customer", rc.Name)
		if id == "" {
			stats.SkippedEntities++
			e.log.Warn().Msg("Skipping customer without id or name")
			continue
		}
		if _, exists := ds.Customers[id]; exists {
			continue
		}

		c := models.Customer{
			ID:          id,
			Name:        strings.TrimSpace(rc.Name),
			Phone:       strings.TrimSpace(rc.Phone),
			CompanyName: strings.TrimSpace(rc.CompanyName),
		}
		c.Missing = models.IsCustomerMissing(c)

		// Invoices merged before the customer was known already reference it
		var orphans []int
		for i, inv := range ds.Invoices {
			if inv.CustomerID == id {
				c.TotalPurchaseAmount += inv.TotalAmount
				orphans = append(orphans, i)
			}
		}
		ds.Customers[id] = c
		for _, i := range orphans {
			inv := &ds.Invoices[i]
			snapshotCustomer(inv, c, true)
			inv.Missing = models.IsInvoiceMissing(*inv, ds.Customers)
		}
		stats.CustomersAdded++
	}
}

// mergeProducts inserts unknown products and accumulates stock on known
// ones, back-filling only the fields that are still absent.
func (e *Engine) mergeProducts(ds *models.Dataset, raws []models.RawProduct, stats *MergeStats) {
	for _, rp := range raws {
		id := entityID(rp.ID, "product", rp.Name)
		if id == "" {
			stats.SkippedEntities++
			e.log.Warn().Msg("Skipping product without id or name")
			continue
		}

		p, exists := ds.Products[id]
		if !exists {
			p = models.Product{
				ID:        id,
				Name:      strings.TrimSpace(rp.Name),
				Brand:     strings.TrimSpace(rp.Brand),
				Quantity:  copyFloat(rp.Quantity),
				UnitPrice: copyFloat(rp.UnitPrice),
				Tax:       valueOr(rp.Tax, 0),
				Discount:  valueOr(rp.Discount, 0),
			}
			p.Missing = models.IsProductMissing(p)
			ds.Products[id] = p
			stats.ProductsAdded++
			continue
		}

		if rp.Quantity != nil {
			if p.Quantity == nil {
				p.Quantity = copyFloat(rp.Quantity)
			} else {
				*p.Quantity += *rp.Quantity
			}
		}
		if p.Name == "" {
			p.Name = strings.TrimSpace(rp.Name)
		}
		if p.Brand == "" {
			p.Brand = strings.TrimSpace(rp.Brand)
		}
		if p.UnitPrice == nil {
			p.UnitPrice = copyFloat(rp.UnitPrice)
		}
		if p.Tax == 0 {
			p.Tax = valueOr(rp.Tax, 0)
		}
		if p.Discount == 0 {
			p.Discount = valueOr(rp.Discount, 0)
		}
		p.Missing = models.IsProductMissing(p)
		ds.Products[id] = p
		stats.ProductsUpdated++
	}
}

// mergeInvoice appends one invoice unless its serial number is taken.
func (e *Engine) mergeInvoice(ds *models.Dataset, ri models.RawInvoice, stats *MergeStats) {
	serial := strings.TrimSpace(ri.SerialNumber)
	if serial != "" && ds.InvoiceBySerial(serial) >= 0 {
		stats.DuplicateSerials = append(stats.DuplicateSerials, serial)
		e.log.Warn().Str("serial_number", serial).Msg("Invoice already exists, skipping")
		return
	}

	inv := models.Invoice{
		ID:            e.newID(),
		SerialNumber:  serial,
		InvoiceDate:   strings.TrimSpace(ri.InvoiceDate),
		CustomerID:    strings.TrimSpace(ri.CustomerID),
		Status:        models.ParseInvoiceStatus(ri.Status),
		AmountPending: copyFloat(ri.AmountPending),
		LineItems:     []models.LineItem{},
	}

	customer, found := ds.Customers[inv.CustomerID]
	snapshotCustomer(&inv, customer, found)

	for _, rl := range ri.LineItems {
		productID := strings.TrimSpace(rl.ProductID)
		product, ok := ds.Products[productID]
		if !ok {
			stats.DroppedLineItems++
			e.log.Warn().
				Str("serial_number", serial).
				Str("product_id", productID).
				Msg("Product not found, dropping line item")
			continue
		}

		li := models.LineItem{
			ID:        e.newID(),
			ProductID: productID,
			Qty:       valueOr(rl.Qty, 0),
			Missing:   product.Missing || rl.Qty == nil,
		}
		snapshotProduct(&li, product)
		inv.LineItems = append(inv.LineItems, li)
	}

	inv.Recalculate()
	inv.Missing = models.IsInvoiceMissing(inv, ds.Customers)
	ds.Invoices = append(ds.Invoices, inv)
	stats.InvoicesAdded++

	if found {
		customer.TotalPurchaseAmount += inv.TotalAmount
		ds.Customers[customer.ID] = customer
	}
}

// snapshotCustomer copies the denormalized customer fields onto an invoice.
func snapshotCustomer(inv *models.Invoice, c models.Customer, found bool) {
	if !found {
		inv.CustomerName = models.UnknownCustomer
		inv.CompanyName = models.UnknownCustomer
		return
	}
	inv.CustomerName = c.Name
	inv.CompanyName = c.CompanyName
}

// snapshotProduct copies the product's current pricing onto a line and recomputes it.
func snapshotProduct(li *models.LineItem, p models.Product) {
	li.ProductName = p.Name
	li.UnitPrice = p.Price()
	li.Tax = p.Tax
	li.Discount = p.Discount
	li.Recalculate()
}

// entityID trims id, falling back to a slug of name.
func entityID(id, prefix, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return models.Slug(prefix, name)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func valueOr(f *float64, fallback float64) float64 {
	if f == nil {
		return fallback
	}
	return *f
}
