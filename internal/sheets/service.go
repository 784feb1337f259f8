package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// Tab names written by ExportDataset.
const (
	InvoicesSheet  = "Invoices"
	ProductsSheet  = "Products"
	CustomersSheet = "Customers"
)

var (
	invoiceHeaders = []interface{}{
		"Serial Number", "Date", "Customer", "Company", "Product", "Qty",
		"Unit Price", "Tax %", "Discount %", "Line Total", "Invoice Total", "Status", "Missing",
	}
	productHeaders = []interface{}{
		"ID", "Name", "Brand", "Quantity", "Unit Price", "Tax %", "Discount %", "Missing",
	}
	customerHeaders = []interface{}{
		"ID", "Name", "Phone", "Company", "Total Purchase Amount", "Missing",
	}
)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return NewSheetsServiceWithClient(sheetsService, spreadsheetID), nil
}

// NewSheetsServiceWithClient wraps an existing API client.
func NewSheetsServiceWithClient(sheetsService *sheets.Service, spreadsheetID string) *Service {
	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Sheets service ready")
	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// ExportDataset replaces the Invoices, Products and Customers tabs with the
// contents of ds. Invoices are written one row per line item, newest first.
func (s *Service) ExportDataset(ctx context.Context, ds models.Dataset) error {
	const op = "ExportDataset"

	tabs := []struct {
		name string
		rows [][]interface{}
	}{
		{InvoicesSheet, invoiceRows(ds)},
		{ProductsSheet, productRows(ds)},
		{CustomersSheet, customerRows(ds)},
	}

	for _, tab := range tabs {
		if err := s.replaceSheet(ctx, tab.name, tab.rows); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info().
		Int("invoices", len(ds.Invoices)).
		Int("products", len(ds.Products)).
		Int("customers", len(ds.Customers)).
		Msg("Dataset exported to Google Sheet")
	return nil
}

func invoiceRows(ds models.Dataset) [][]interface{} {
	rows := [][]interface{}{invoiceHeaders}
	for _, inv := range reconcile.SortInvoices(ds.Invoices, reconcile.SortByDate, true) {
		if len(inv.LineItems) == 0 {
			rows = append(rows, []interface{}{
				inv.SerialNumber, inv.InvoiceDate, inv.CustomerName, inv.CompanyName,
				"", "", "", "", "", "", inv.TotalAmount, string(inv.Status), inv.Missing,
			})
			continue
		}
		for _, li := range inv.LineItems {
			rows = append(rows, []interface{}{
				inv.SerialNumber, inv.InvoiceDate, inv.CustomerName, inv.CompanyName,
				li.ProductName, li.Qty, li.UnitPrice, li.Tax, li.Discount, li.TotalAmount,
				inv.TotalAmount, string(inv.Status), inv.Missing || li.Missing,
			})
		}
	}
	return rows
}

func productRows(ds models.Dataset) [][]interface{} {
	rows := [][]interface{}{productHeaders}
	for _, id := range sortedKeys(ds.Products) {
		p := ds.Products[id]
		rows = append(rows, []interface{}{
			p.ID, p.Name, p.Brand, optional(p.Quantity), optional(p.UnitPrice), p.Tax, p.Discount, p.Missing,
		})
	}
	return rows
}

func customerRows(ds models.Dataset) [][]interface{} {
	rows := [][]interface{}{customerHeaders}
	for _, id := range sortedKeys(ds.Customers) {
		c := ds.Customers[id]
		rows = append(rows, []interface{}{
			c.ID, c.Name, c.Phone, c.CompanyName, c.TotalPurchaseAmount, c.Missing,
		})
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// optional renders an absent number as an empty cell.
func optional(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}

// replaceSheet makes sure the tab exists, clears it and writes rows from A1.
func (s *Service) replaceSheet(ctx context.Context, sheetName string, rows [][]interface{}) error {
	const op = "replaceSheet"

	sheetID, created, err := s.ensureSheet(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.sheetsService.Spreadsheets.Values.Clear(
		s.spreadsheetID,
		sheetName,
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to clear sheet %s: %w", op, sheetName, err)
	}

	if _, err := s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		sheetName+"!A1",
		&sheets.ValueRange{Values: rows},
	).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to write sheet %s: %w", op, sheetName, err)
	}

	if created {
		if err := s.formatHeaders(ctx, sheetID, int64(len(rows[0]))); err != nil {
			s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
		}
	}

	s.log.Debug().
		Str("sheet", sheetName).
		Int("rows", len(rows)-1).
		Msg("Sheet replaced")
	return nil
}

// ensureSheet returns the id of sheetName, creating the tab if needed.
func (s *Service) ensureSheet(ctx context.Context, sheetName string) (int64, bool, error) {
	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, false, nil
		}
	}

	s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("failed to create sheet %s: %w", sheetName, err)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, true, nil
}

// formatHeaders makes the header row bold and auto-sizes the columns.
func (s *Service) formatHeaders(ctx context.Context, sheetID, columns int64) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("formatHeaders: %w", err)
	}
	return nil
}
