package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

var editCmd = &cobra.Command{
	Use:   "edit customer|product|invoice|line-item",
	Short: "Change fields of a customer, product, invoice or line item",
	Long: `Change fields of one record and save the dataset.

Fields:
  customer   name, phone, companyName
  product    name, brand, quantity, unitPrice, tax, discount
  invoice    serialNumber, invoiceDate, status, customerId, customerName
  line-item  qty (requires --invoice)

Customer changes are copied into every invoice of that customer. Product
changes only touch the product unless --reprice is given, which also updates
every line item of the product and all affected totals.`,
	Example: `  # Fill in a missing phone number
  swipe-invoice edit customer --user alice --id customer_john_doe --set phone=555-0100

  # Correct a price and reprice existing invoices
  swipe-invoice edit product --user alice --id p1 --set unitPrice=120 --reprice

  # Mark an invoice as paid
  swipe-invoice edit invoice --user alice --id 6f1c... --set status=Paid

  # Change a line item quantity
  swipe-invoice edit line-item --user alice --invoice 6f1c... --id 91ab... --set qty=3`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"customer", "product", "invoice", "line-item"},
	RunE:      runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().String("id", "", "ID of the record to change [REQUIRED]")
	editCmd.Flags().String("invoice", "", "Invoice ID of the line item")
	editCmd.Flags().StringArray("set", nil, "field=value, repeatable [REQUIRED]")
	editCmd.Flags().Bool("reprice", false, "Apply product changes to existing line items")

	editCmd.MarkFlagRequired("id")
	editCmd.MarkFlagRequired("set")
}

func runEdit(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("edit")

	kind := strings.ToLower(args[0])
	id, _ := cmd.Flags().GetString("id")
	invoiceID, _ := cmd.Flags().GetString("invoice")
	sets, _ := cmd.Flags().GetStringArray("set")
	reprice, _ := cmd.Flags().GetBool("reprice")

	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	fields, err := parseAssignments(sets)
	if err != nil {
		return err
	}

	engine := reconcile.NewEngine()
	var apply func(models.Dataset) (models.Dataset, error)

	switch kind {
	case "customer":
		patch, err := customerPatch(fields)
		if err != nil {
			return err
		}
		apply = func(ds models.Dataset) (models.Dataset, error) { return engine.UpdateCustomer(ds, id, patch) }
	case "product":
		patch, err := productPatch(fields)
		if err != nil {
			return err
		}
		apply = func(ds models.Dataset) (models.Dataset, error) { return engine.UpdateProduct(ds, id, patch, reprice) }
	case "invoice":
		patch, err := invoicePatch(fields)
		if err != nil {
			return err
		}
		apply = func(ds models.Dataset) (models.Dataset, error) { return engine.UpdateInvoice(ds, id, patch) }
	case "line-item":
		if invoiceID == "" {
			return fmt.Errorf("--invoice is required for line-item")
		}
		qty, err := lineItemQty(fields)
		if err != nil {
			return err
		}
		apply = func(ds models.Dataset) (models.Dataset, error) {
			return engine.UpdateLineItemQty(ds, invoiceID, id, qty)
		}
	default:
		return fmt.Errorf("unknown record type: %s (must be customer, product, invoice or line-item)", kind)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	gw, err := openGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	current, err := gw.Read(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	updated, err := apply(current)
	if err != nil {
		return err
	}
	if err := gw.Write(ctx, user, updated); err != nil {
		return fmt.Errorf("failed to save dataset: %s", describeError(err))
	}

	log.Info().
		Str("user_id", user).
		Str("kind", kind).
		Str("id", id).
		Int("fields", len(fields)).
		Msg("Record updated")

	fmt.Printf("Updated %s %s\n", kind, id)
	printSummary(reconcile.Summarize(updated))
	return nil
}

// parseAssignments turns field=value pairs into a map keyed by lower-case field
func parseAssignments(sets []string) (map[string]string, error) {
	fields := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected field=value", s)
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields, nil
}

func customerPatch(fields map[string]string) (reconcile.CustomerPatch, error) {
	var patch reconcile.CustomerPatch
	for key, value := range fields {
		v := value
		switch key {
		case "name":
			patch.Name = &v
		case "phone":
			patch.Phone = &v
		case "companyname", "company":
			patch.CompanyName = &v
		default:
			return patch, fmt.Errorf("unknown customer field: %s", key)
		}
	}
	return patch, nil
}

func productPatch(fields map[string]string) (reconcile.ProductPatch, error) {
	var patch reconcile.ProductPatch
	for key, value := range fields {
		v := value
		switch key {
		case "name":
			patch.Name = &v
			continue
		case "brand":
			patch.Brand = &v
			continue
		}

		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return patch, fmt.Errorf("product field %s must be a number: %q", key, value)
		}
		switch key {
		case "quantity", "qty":
			patch.Quantity = &n
		case "unitprice", "price":
			patch.UnitPrice = &n
		case "tax":
			patch.Tax = &n
		case "discount":
			patch.Discount = &n
		default:
			return patch, fmt.Errorf("unknown product field: %s", key)
		}
	}
	return patch, nil
}

func invoicePatch(fields map[string]string) (reconcile.InvoicePatch, error) {
	var patch reconcile.InvoicePatch
	for key, value := range fields {
		v := value
		switch key {
		case "serialnumber", "serial":
			patch.SerialNumber = &v
		case "invoicedate", "date":
			patch.InvoiceDate = &v
		case "status":
			status := models.ParseInvoiceStatus(v)
			patch.Status = &status
		case "customerid", "customer":
			patch.CustomerID = &v
		case "customername":
			patch.CustomerName = &v
		default:
			return patch, fmt.Errorf("unknown invoice field: %s", key)
		}
	}
	return patch, nil
}

func lineItemQty(fields map[string]string) (float64, error) {
	raw, ok := fields["qty"]
	if !ok || len(fields) != 1 {
		return 0, fmt.Errorf("line items only support --set qty=<number>")
	}
	qty, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("qty must be a number: %q", raw)
	}
	return qty, nil
}
