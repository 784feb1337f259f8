package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// Summary holds the counts shown above the tables.
type Summary struct {
	Invoices         int     `json:"invoices"`
	Products         int     `json:"products"`
	Customers        int     `json:"customers"`
	GrandTotal       float64 `json:"grandTotal"`
	MissingInvoices  int     `json:"missingInvoices"`
	MissingProducts  int     `json:"missingProducts"`
	MissingCustomers int     `json:"missingCustomers"`
}

// HasMissing reports whether any record needs review.
func (s Summary) HasMissing() bool {
	return s.MissingInvoices+s.MissingProducts+s.MissingCustomers > 0
}

// Summarize counts the records of ds.
func Summarize(ds models.Dataset) Summary {
	s := Summary{
		Invoices:  len(ds.Invoices),
		Products:  len(ds.Products),
		Customers: len(ds.Customers),
	}
	for _, inv := range ds.Invoices {
		s.GrandTotal += inv.TotalAmount
		if inv.Missing {
			s.MissingInvoices++
		}
	}
	for _, p := range ds.Products {
		if p.Missing {
			s.MissingProducts++
		}
	}
	for _, c := range ds.Customers {
		if c.Missing {
			s.MissingCustomers++
		}
	}
	return s
}

// SortKey names an invoice column.
type SortKey string

const (
	SortByDate     SortKey = "date"
	SortBySerial   SortKey = "serial"
	SortByCustomer SortKey = "customer"
	SortByTotal    SortKey = "total"
	SortByStatus   SortKey = "status"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2, 2006",
}

// parseInvoiceDate tries the common printed date formats, day first.
func parseInvoiceDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortInvoices returns a sorted copy of invoices. Unparseable dates sort
// before parseable ones. The sort is stable.
func SortInvoices(invoices []models.Invoice, key SortKey, desc bool) []models.Invoice {
	out := append([]models.Invoice(nil), invoices...)

	less := func(a, b models.Invoice) bool {
		switch key {
		case SortBySerial:
			return a.SerialNumber < b.SerialNumber
		case SortByCustomer:
			return strings.ToLower(a.CustomerName) < strings.ToLower(b.CustomerName)
		case SortByTotal:
			return a.TotalAmount < b.TotalAmount
		case SortByStatus:
			return a.Status < b.Status
		default:
			ta, okA := parseInvoiceDate(a.InvoiceDate)
			tb, okB := parseInvoiceDate(b.InvoiceDate)
			if okA && okB {
				return ta.Before(tb)
			}
			if okA != okB {
				return !okA
			}
			return a.InvoiceDate < b.InvoiceDate
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
