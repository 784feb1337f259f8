package extraction

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetPrefix marks the start of tabular text sent to the service.
const SpreadsheetPrefix = "--- Excel/CSV Data ---"

// MaxFileSizeBytes is the largest file forwarded inline (20MB)
const MaxFileSizeBytes = 20 * 1024 * 1024

// MediaKind is the adapter's view of a file.
type MediaKind string

const (
	KindImage       MediaKind = "image"
	KindPDF         MediaKind = "pdf"
	KindSpreadsheet MediaKind = "spreadsheet"
)

// File is one uploaded document.
type File struct {
	Name      string
	MediaType string
	Content   []byte
}

// Document is a File prepared for an extraction provider. Images and PDFs
// keep their bytes; spreadsheets are reduced to CSV text.
type Document struct {
	Name     string
	Kind     MediaKind
	MimeType string
	Data     []byte
	Text     string
}

var extensionTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	".xls":  "application/vnd.ms-excel",
}

// DetectMediaType guesses the media type of a file from its extension, then
// from its content.
func DetectMediaType(name string, content []byte) string {
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return http.DetectContentType(content)
}

// Classify maps a media type onto a MediaKind.
func Classify(mediaType string) (MediaKind, error) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/vnd.ms-excel":
		return "", NewExtractionError("Classify", ErrUnsupportedFormat, "legacy .xls not supported, save as .xlsx or .csv")
	case strings.HasPrefix(mt, "image/"):
		return KindImage, nil
	case mt == "application/pdf":
		return KindPDF, nil
	case strings.Contains(mt, "excel"), strings.Contains(mt, "spreadsheetml"), strings.Contains(mt, "csv"):
		return KindSpreadsheet, nil
	}
	return "", NewExtractionError("Classify", ErrUnsupportedFormat, fmt.Sprintf("media type %q", mediaType))
}

// PrepareFile validates a file and converts it into a Document. It never
// touches the network.
func PrepareFile(f File) (*Document, error) {
	const op = "PrepareFile"

	mediaType := f.MediaType
	if mediaType == "" {
		mediaType = DetectMediaType(f.Name, f.Content)
	}
	kind, err := Classify(mediaType)
	if err != nil {
		return nil, err
	}
	if len(f.Content) == 0 {
		return nil, NewExtractionError(op, ErrUnsupportedFormat, fmt.Sprintf("%s is empty", f.Name))
	}
	if len(f.Content) > MaxFileSizeBytes {
		return nil, NewExtractionError(op, ErrUnsupportedFormat, fmt.Sprintf("file size: %d bytes", len(f.Content)))
	}

	doc := &Document{
		Name:     f.Name,
		Kind:     kind,
		MimeType: mediaType,
	}
	if kind != KindSpreadsheet {
		doc.Data = f.Content
		return doc, nil
	}

	table, err := spreadsheetToCSV(mediaType, f.Content)
	if err != nil {
		return nil, NewExtractionError(op, ErrUnsupportedFormat, err.Error())
	}
	doc.Text = SpreadsheetPrefix + "\n" + table
	return doc, nil
}

// spreadsheetToCSV returns the first sheet of a workbook, or the CSV itself,
// as CSV text.
func spreadsheetToCSV(mediaType string, content []byte) (string, error) {
	if strings.Contains(strings.ToLower(mediaType), "csv") {
		rows, err := parseCSVRows(content)
		if err != nil {
			return "", err
		}
		return writeCSV(rows)
	}

	rows, err := parseExcelRows(content)
	if err != nil {
		return "", err
	}
	return writeCSV(rows)
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func writeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}
