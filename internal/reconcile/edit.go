package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

var (
	// ErrNotFound is matched by every "not found" error of this package.
	ErrNotFound = errors.New("not found")

	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", ErrNotFound)
	ErrLineItemNotFound = fmt.Errorf("line item %w", ErrNotFound)

	// ErrDuplicateSerial is returned when an edit would give two invoices the same serial number.
	ErrDuplicateSerial = errors.New("serial number already used by another invoice")

	// ErrInvalidValue is returned for negative quantities, prices or percentages.
	ErrInvalidValue = errors.New("invalid value")
)

// CustomerPatch lists the customer fields to change. Nil fields are left as is.
type CustomerPatch struct {
	Name        *string `json:"name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
}

// ProductPatch lists the product fields to change. Nil fields are left as is.
type ProductPatch struct {
	Name      *string  `json:"name,omitempty"`
	Brand     *string  `json:"brand,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
	Tax       *float64 `json:"tax,omitempty"`
	Discount  *float64 `json:"discount,omitempty"`
}

// InvoicePatch lists the invoice fields to change. Nil fields are left as is.
// CustomerName renames the referenced customer everywhere.
type InvoicePatch struct {
	SerialNumber *string               `json:"serialNumber,omitempty"`
	InvoiceDate  *string               `json:"invoiceDate,omitempty"`
	Status       *models.InvoiceStatus `json:"status,omitempty"`
	CustomerID   *string               `json:"customerId,omitempty"`
	CustomerName *string               `json:"customerName,omitempty"`
}

// UpdateCustomer changes customer fields and propagates the name and company
// name into every invoice that references the customer.
func (e *Engine) UpdateCustomer(ds models.Dataset, id string, patch CustomerPatch) (models.Dataset, error) {
	const op = "UpdateCustomer"

	out := ds.Clone()
	if err := updateCustomer(&out, id, patch); err != nil {
		return ds, fmt.Errorf("%s: %s: %w", op, id, err)
	}

	e.log.Info().Str("customer_id", id).Msg("Customer updated")
	return out, nil
}

func updateCustomer(ds *models.Dataset, id string, patch CustomerPatch) error {
	c, ok := ds.Customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		c.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.CompanyName != nil {
		c.CompanyName = strings.TrimSpace(*patch.CompanyName)
	}
	c.Missing = models.IsCustomerMissing(c)
	ds.Customers[id] = c

	for i := range ds.Invoices {
		inv := &ds.Invoices[i]
		if inv.CustomerID != id {
			continue
		}
		snapshotCustomer(inv, c, true)
		inv.Missing = models.IsInvoiceMissing(*inv, ds.Customers)
	}
	return nil
}

// UpdateProduct changes product fields. Line items keep their snapshot
// unless reprice is set, in which case every line item of the product takes
// the new name and pricing and all totals are recomputed.
func (e *Engine) UpdateProduct(ds models.Dataset, id string, patch ProductPatch, reprice bool) (models.Dataset, error) {
	const op = "UpdateProduct"

	out := ds.Clone()
	p, ok := out.Products[id]
	if !ok {
		return ds, fmt.Errorf("%s: %s: %w", op, id, ErrProductNotFound)
	}
	for _, v := range []*float64{patch.Quantity, patch.UnitPrice, patch.Tax, patch.Discount} {
		if v != nil && *v < 0 {
			return ds, fmt.Errorf("%s: %s: %w: negative number", op, id, ErrInvalidValue)
		}
	}

	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Brand != nil {
		p.Brand = strings.TrimSpace(*patch.Brand)
	}
	if patch.Quantity != nil {
		p.Quantity = copyFloat(patch.Quantity)
	}
	if patch.UnitPrice != nil {
		p.UnitPrice = copyFloat(patch.UnitPrice)
	}
	if patch.Tax != nil {
		p.Tax = *patch.Tax
	}
	if patch.Discount != nil {
		p.Discount = *patch.Discount
	}
	p.Missing = models.IsProductMissing(p)
	out.Products[id] = p

	repriced := 0
	if reprice {
		for i := range out.Invoices {
			inv := &out.Invoices[i]
			touched := false
			for j := range inv.LineItems {
				li := &inv.LineItems[j]
				if li.ProductID != id {
					continue
				}
				snapshotProduct(li, p)
				li.Missing = p.Missing
				touched = true
				repriced++
			}
			if touched {
				inv.Recalculate()
			}
		}
		RecomputeCustomerTotals(&out)
	}

	e.log.Info().
		Str("product_id", id).
		Bool("reprice", reprice).
		Int("line_items", repriced).
		Msg("Product updated")
	return out, nil
}

// UpdateInvoice changes invoice fields, re-resolving the customer snapshot
// and keeping customer aggregates consistent.
func (e *Engine) UpdateInvoice(ds models.Dataset, id string, patch InvoicePatch) (models.Dataset, error) {
	const op = "UpdateInvoice"

	out := ds.Clone()
	idx := out.InvoiceByID(id)
	if idx < 0 {
		return ds, fmt.Errorf("%s: %s: %w", op, id, ErrInvoiceNotFound)
	}
	inv := &out.Invoices[idx]

	if patch.SerialNumber != nil {
		serial := strings.TrimSpace(*patch.SerialNumber)
		if other := out.InvoiceBySerial(serial); serial != "" && other >= 0 && other != idx {
			return ds, fmt.Errorf("%s: %s: %w", op, serial, ErrDuplicateSerial)
		}
		inv.SerialNumber = serial
	}
	if patch.InvoiceDate != nil {
		inv.InvoiceDate = strings.TrimSpace(*patch.InvoiceDate)
	}
	if patch.Status != nil {
		inv.Status = models.ParseInvoiceStatus(string(*patch.Status))
	}
	if patch.CustomerID != nil {
		inv.CustomerID = strings.TrimSpace(*patch.CustomerID)
	}

	customer, found := out.Customers[inv.CustomerID]
	snapshotCustomer(inv, customer, found)
	inv.Missing = models.IsInvoiceMissing(*inv, out.Customers)

	if patch.CustomerName != nil {
		if found {
			if err := updateCustomer(&out, inv.CustomerID, CustomerPatch{Name: patch.CustomerName}); err != nil {
				return ds, fmt.Errorf("%s: %w", op, err)
			}
		} else {
			// Nothing to rename; keep the typed name on this invoice only
			inv.CustomerName = strings.TrimSpace(*patch.CustomerName)
		}
	}

	RecomputeCustomerTotals(&out)

	e.log.Info().Str("invoice_id", id).Msg("Invoice updated")
	return out, nil
}

// UpdateLineItemQty changes the quantity of one line and recomputes the line,
// the invoice and the customer aggregates.
func (e *Engine) UpdateLineItemQty(ds models.Dataset, invoiceID, lineID string, qty float64) (models.Dataset, error) {
	const op = "UpdateLineItemQty"

	if qty < 0 {
		return ds, fmt.Errorf("%s: %w: negative quantity", op, ErrInvalidValue)
	}

	out := ds.Clone()
	idx := out.InvoiceByID(invoiceID)
	if idx < 0 {
		return ds, fmt.Errorf("%s: %s: %w", op, invoiceID, ErrInvoiceNotFound)
	}
	inv := &out.Invoices[idx]

	found := false
	for j := range inv.LineItems {
		li := &inv.LineItems[j]
		if li.ID != lineID {
			continue
		}
		li.Qty = qty
		li.Recalculate()
		p, ok := out.Products[li.ProductID]
		li.Missing = !ok || p.Missing
		found = true
		break
	}
	if !found {
		return ds, fmt.Errorf("%s: %s: %w", op, lineID, ErrLineItemNotFound)
	}

	inv.Recalculate()
	RecomputeCustomerTotals(&out)
	return out, nil
}

// Reset returns the empty dataset; persisting it removes every record.
func (e *Engine) Reset() models.Dataset {
	e.log.Warn().Msg("Dataset reset requested")
	return models.NewDataset()
}

// RecomputeCustomerTotals sets every customer's total purchase amount to the
// sum of its invoice totals.
func RecomputeCustomerTotals(ds *models.Dataset) {
	totals := make(map[string]float64, len(ds.Customers))
	for _, inv := range ds.Invoices {
		if _, ok := ds.Customers[inv.CustomerID]; ok {
			totals[inv.CustomerID] += inv.TotalAmount
		}
	}
	for id, c := range ds.Customers {
		c.TotalPurchaseAmount = totals[id]
		ds.Customers[id] = c
	}
}
