package extraction

import (
	"fmt"
	"strings"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// ValidatePayload reports inconsistencies inside one payload. None of them
// reject the payload: the merge resolves each one (dropping dangling line
// items, skipping repeated serials, flagging missing fields), so the
// warnings only explain why the merged result differs from the document.
func ValidatePayload(p *models.RawPayload) []string {
	if p == nil {
		return nil
	}
	var warnings []string

	customers := make(map[string]bool, len(p.Customers))
	for _, c := range p.Customers {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = models.Slug("customer", c.Name)
		}
		if id == "" {
			warnings = append(warnings, "customer without id or name")
			continue
		}
		customers[id] = true
	}

	products := make(map[string]bool, len(p.Products))
	for _, pr := range p.Products {
		id := strings.TrimSpace(pr.ID)
		if id == "" {
			id = models.Slug("product", pr.Name)
		}
		if id == "" {
			warnings = append(warnings, "product without id or name")
			continue
		}
		products[id] = true

		for name, v := range map[string]*float64{
			"quantity":  pr.Quantity,
			"unitPrice": pr.UnitPrice,
			"tax":       pr.Tax,
			"discount":  pr.Discount,
		} {
			if v != nil && *v < 0 {
				warnings = append(warnings, fmt.Sprintf("product %s: negative %s %.2f", id, name, *v))
			}
		}
		if pr.Discount != nil && *pr.Discount > 100 {
			warnings = append(warnings, fmt.Sprintf("product %s: discount above 100%%", id))
		}
	}

	serials := make(map[string]bool, len(p.Invoices))
	for i, inv := range p.Invoices {
		serial := strings.TrimSpace(inv.SerialNumber)
		label := serial
		if serial == "" {
			label = fmt.Sprintf("#%d", i+1)
			warnings = append(warnings, fmt.Sprintf("invoice %s: no serial number", label))
		} else if serials[serial] {
			warnings = append(warnings, fmt.Sprintf("invoice %s: serial number repeated in document", label))
		}
		serials[serial] = true

		if cid := strings.TrimSpace(inv.CustomerID); cid != "" && !customers[cid] {
			warnings = append(warnings, fmt.Sprintf("invoice %s: customer %s not in document", label, cid))
		}
		for _, li := range inv.LineItems {
			pid := strings.TrimSpace(li.ProductID)
			if !products[pid] {
				warnings = append(warnings, fmt.Sprintf("invoice %s: product %q not in document", label, pid))
			}
			if li.Qty == nil {
				warnings = append(warnings, fmt.Sprintf("invoice %s: product %q has no quantity", label, pid))
			}
		}
	}

	return warnings
}
