package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the user's invoices, products and customers",
	Example: `  # Newest invoices first
  swipe-invoice show --user alice

  # Largest invoices first
  swipe-invoice show --user alice --sort total --desc

  # Raw dataset
  swipe-invoice show --user alice --json`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().String("sort", string(reconcile.SortByDate), "Sort invoices by date, serial, customer, total or status")
	showCmd.Flags().Bool("desc", true, "Sort descending")
	showCmd.Flags().Bool("json", false, "Print the dataset as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("show")

	sortKey, _ := cmd.Flags().GetString("sort")
	desc, _ := cmd.Flags().GetBool("desc")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	user, err := requireUser(cmd)
	if err != nil {
		return err
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

	ds, err := gw.Read(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	ds.Invoices = reconcile.SortInvoices(ds.Invoices, reconcile.SortKey(strings.ToLower(sortKey)), desc)

	if jsonOutput {
		data, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printSummary(reconcile.Summarize(ds))
	printDataset(ds)
	return nil
}

func printSummary(s reconcile.Summary) {
	fmt.Printf("Invoices: %d  Products: %d  Customers: %d  Total: %.2f\n",
		s.Invoices, s.Products, s.Customers, s.GrandTotal)
	if s.HasMissing() {
		fmt.Printf("⚠️  Missing fields: %d invoices, %d products, %d customers\n",
			s.MissingInvoices, s.MissingProducts, s.MissingCustomers)
	}
}

func printDataset(ds models.Dataset) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "\nINVOICES")
	fmt.Fprintln(w, "ID\tSERIAL\tDATE\tCUSTOMER\tITEMS\tTOTAL\tSTATUS\t")
	for _, inv := range ds.Invoices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			inv.ID, inv.SerialNumber, inv.InvoiceDate, inv.CustomerName,
			len(inv.LineItems), inv.TotalAmount, inv.Status, missingMark(inv.Missing))
	}

	fmt.Fprintln(w, "\nPRODUCTS")
	fmt.Fprintln(w, "ID\tNAME\tBRAND\tQTY\tUNIT PRICE\tTAX %\tDISCOUNT %\t")
	for _, id := range sortedIDs(ds.Products) {
		p := ds.Products[id]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			p.ID, p.Name, p.Brand, formatOptional(p.Quantity), formatOptional(p.UnitPrice),
			p.Tax, p.Discount, missingMark(p.Missing))
	}

	fmt.Fprintln(w, "\nCUSTOMERS")
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tCOMPANY\tTOTAL PURCHASES\t")
	for _, id := range sortedIDs(ds.Customers) {
		c := ds.Customers[id]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			c.ID, c.Name, c.Phone, c.CompanyName, c.TotalPurchaseAmount, missingMark(c.Missing))
	}

	w.Flush()
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func formatOptional(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *f)
}

func missingMark(missing bool) string {
	if missing {
		return "⚠️ missing"
	}
	return ""
}
