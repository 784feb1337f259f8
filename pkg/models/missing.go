package models

import "strings"

// The missing flag on every entity is a cache of these predicates and is never
// set any other way.

// IsCustomerMissing reports whether name, phone or company name is empty.
func IsCustomerMissing(c Customer) bool {
	return blank(c.Name) || blank(c.Phone) || blank(c.CompanyName)
}

// IsProductMissing reports whether name, unit price or quantity is absent.
func IsProductMissing(p Product) bool {
	return blank(p.Name) || p.UnitPrice == nil || p.Quantity == nil
}

// IsInvoiceMissing reports whether the serial number or date is empty, or the
// customer reference does not resolve in customers.
func IsInvoiceMissing(inv Invoice, customers map[string]Customer) bool {
	if blank(inv.SerialNumber) || blank(inv.InvoiceDate) {
		return true
	}
	_, ok := customers[inv.CustomerID]
	return !ok
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
