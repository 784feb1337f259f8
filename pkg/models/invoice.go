package models

import "strings"

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	StatusPaid    InvoiceStatus = "Paid"
	StatusPending InvoiceStatus = "Pending"
	StatusOverdue InvoiceStatus = "Overdue"
)

// UnknownCustomer fills the denormalized customer fields of an invoice whose
// customer id does not resolve.
const UnknownCustomer = "N/A"

// ParseInvoiceStatus maps free-form status text onto a known status.
// Anything unrecognized is treated as pending.
func ParseInvoiceStatus(s string) InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return StatusPaid
	case "overdue":
		return StatusOverdue
	default:
		return StatusPending
	}
}

type Invoice struct {
	// Core identifiers
	ID           string `json:"id"`           // Generated when the invoice is merged
	SerialNumber string `json:"serialNumber"` // Natural dedup key
	InvoiceDate  string `json:"invoiceDate"`  // As printed on the document

	// Customer reference and its denormalized copies
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	CompanyName  string `json:"companyName"`

	Status        InvoiceStatus `json:"status"`
	AmountPending *float64      `json:"amountPending,omitempty"` // Outstanding amount if the document states one

	// Derived
	TotalAmount float64    `json:"totalAmount"` // Sum of line item totals
	LineItems   []LineItem `json:"lineItems"`
	Missing     bool       `json:"missing"`
}

// LineItem is embedded in an Invoice. Product fields are snapshots taken at
// merge time, not live references.
type LineItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	Qty         float64 `json:"qty"`
	ProductName string  `json:"productName"`
	UnitPrice   float64 `json:"unitPrice"`
	Tax         float64 `json:"tax"`      // Percent
	Discount    float64 `json:"discount"` // Percent
	TotalAmount float64 `json:"totalAmount"`
	Missing     bool    `json:"missing"`
}

// LineTotal computes the total of a single line: discount is applied to the
// base before tax is added on top.
func LineTotal(unitPrice, qty, taxPercent, discountPercent float64) float64 {
	base := unitPrice * qty
	if discountPercent != 0 {
		base *= 1 - discountPercent/100
	}
	return base + base*(taxPercent/100)
}

// Recalculate refreshes the line total from its snapshot fields.
func (li *LineItem) Recalculate() {
	li.TotalAmount = LineTotal(li.UnitPrice, li.Qty, li.Tax, li.Discount)
}

// Recalculate refreshes the invoice total from its line items.
func (inv *Invoice) Recalculate() {
	total := 0.0
	for _, li := range inv.LineItems {
		total += li.TotalAmount
	}
	inv.TotalAmount = total
}
