package models

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RawPayload is what an extraction provider returns for one file. It carries
// no derived fields.
type RawPayload struct {
	Invoices  []RawInvoice  `json:"invoices"`
	Products  []RawProduct  `json:"products"`
	Customers []RawCustomer `json:"customers"`
}

type RawCustomer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CompanyName string `json:"companyName"`
}

type RawProduct struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Brand     string   `json:"brand"`
	Quantity  *float64 `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice"`
	Tax       *float64 `json:"tax"`
	Discount  *float64 `json:"discount"`
}

type RawInvoice struct {
	SerialNumber  string        `json:"serialNumber"`
	InvoiceDate   string        `json:"invoiceDate"`
	CustomerID    string        `json:"customerId"`
	CompanyName   string        `json:"companyName"`
	Status        string        `json:"status"`
	AmountPending *float64      `json:"amountPending"`
	LineItems     []RawLineItem `json:"lineItems"`
}

type RawLineItem struct {
	ProductID string   `json:"productId"`
	Qty       *float64 `json:"qty"`
}

// UnmarshalJSON also accepts the snake_case customer_id key.
func (r *RawInvoice) UnmarshalJSON(data []byte) error {
	type plain RawInvoice
	aux := struct {
		*plain
		LegacyCustomerID string `json:"customer_id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.CustomerID == "" {
		r.CustomerID = aux.LegacyCustomerID
	}
	return nil
}

// UnmarshalJSON also accepts the snake_case product_id key.
func (r *RawLineItem) UnmarshalJSON(data []byte) error {
	type plain RawLineItem
	aux := struct {
		*plain
		LegacyProductID string `json:"product_id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ProductID == "" {
		r.ProductID = aux.LegacyProductID
	}
	return nil
}

// ParseRawPayload decodes the JSON text returned by an extraction provider.
func ParseRawPayload(text string) (*RawPayload, error) {
	var p RawPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a deterministic id such as "customer_john_doe" from a name.
// It returns "" when the name has no usable characters.
func Slug(prefix, name string) string {
	s := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		return ""
	}
	return prefix + "_" + s
}
