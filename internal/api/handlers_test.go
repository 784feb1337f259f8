package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/batch"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/store"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// stubExtractor answers by file name; unknown names are unsupported.
type stubExtractor map[string]*models.RawPayload

func (s stubExtractor) Extract(_ context.Context, f extraction.File) (*models.RawPayload, error) {
	if p, ok := s[f.Name]; ok {
		return p, nil
	}
	return nil, extraction.NewExtractionError("Extract", extraction.ErrUnsupportedFormat, f.Name)
}

func scanPayload(serial, date string) *models.RawPayload {
	return &models.RawPayload{
		Customers: []models.RawCustomer{{ID: "c1", Name: "John", Phone: "555", CompanyName: "Acme"}},
		Products:  []models.RawProduct{{ID: "p1", Name: "Widget", Quantity: models.Float(5), UnitPrice: models.Float(100), Tax: models.Float(18)}},
		Invoices: []models.RawInvoice{{
			SerialNumber: serial,
			InvoiceDate:  date,
			CustomerID:   "c1",
			LineItems:    []models.RawLineItem{{ProductID: "p1", Qty: models.Float(2)}},
		}},
	}
}

type testServer struct {
	*httptest.Server
	gateway *store.MemoryGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gateway := store.NewMemoryGateway("app")
	n := 0
	engine := reconcile.NewEngineWithIDs(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
	extractor := stubExtractor{
		"scan1.png": scanPayload("INV-1", "2024-01-15"),
		"scan2.png": scanPayload("INV-2", "2024-03-01"),
	}
	processor := batch.NewProcessor(extractor, gateway, engine, 2)

	srv := httptest.NewServer(NewRouter(NewHandler(processor, gateway, engine)))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, gateway: gateway}
}

func (s *testServer) userURL(path string) string {
	return s.URL + "/api/v1/users/u1" + path
}

func (s *testServer) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.userURL(path), strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (s *testServer) upload(t *testing.T, names ...string) (*http.Response, uploadResponse) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte("content of " + name))
	}
	require.NoError(t, mw.Close())

	resp, err := s.Client().Post(s.userURL("/uploads"), mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (s *testServer) dataset(t *testing.T) models.Dataset {
	t.Helper()
	ds, err := s.gateway.Read(context.Background(), "u1")
	require.NoError(t, err)
	return ds
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUploadPartialFailure(t *testing.T) {
	srv := newTestServer(t)

	resp, out := srv.upload(t, "scan1.png", "notes.txt", "scan2.png")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processed 2 of 3 files; failed: notes.txt", out.Message)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "notes.txt", out.Failed[0].File)
	assert.Equal(t, 2, out.InvoicesAdded)
	require.NotNil(t, out.Summary)
	assert.InDelta(t, 472, out.Summary.GrandTotal, 1e-9)

	assert.Len(t, srv.dataset(t).Invoices, 2)
}

func TestUploadAllFail(t *testing.T) {
	srv := newTestServer(t)

	resp, out := srv.upload(t, "a.txt", "b.txt")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out.Message, "all files failed")
	assert.Len(t, out.Failed, 2)
	assert.Nil(t, out.Summary)
	assert.Empty(t, srv.dataset(t).Invoices)
}

func TestUploadWithoutFiles(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "nothing attached"))
	require.NoError(t, mw.Close())

	resp, err := srv.Client().Post(srv.userURL("/uploads"), mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetDatasetSorted(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t, "scan1.png", "scan2.png")

	fetch := func(query string) []string {
		resp, err := srv.Client().Get(srv.userURL("/dataset" + query))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ds models.Dataset
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ds))
		serials := make([]string, len(ds.Invoices))
		for i, inv := range ds.Invoices {
			serials[i] = inv.SerialNumber
		}
		return serials
	}

	assert.Equal(t, []string{"INV-2", "INV-1"}, fetch(""), "newest first by default")
	assert.Equal(t, []string{"INV-1", "INV-2"}, fetch("?sort=date&desc=false"))
	assert.Equal(t, []string{"INV-1", "INV-2"}, fetch("?sort=serial&desc=false"))

	resp, _ := srv.do(t, http.MethodGet, "/dataset?desc=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummaryAndReset(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t, "scan1.png")

	resp, body := srv.do(t, http.MethodGet, "/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["invoices"])
	assert.Equal(t, 236.0, body["grandTotal"])

	resp, _ = srv.do(t, http.MethodDelete, "/dataset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, srv.dataset(t).Invoices)
	assert.Empty(t, srv.dataset(t).Customers)
}

func TestPatchEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t, "scan1.png", "scan2.png")
	ds := srv.dataset(t)
	first := ds.Invoices[0]

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "rename customer", path: "/customers/c1", body: `{"name":"John Smith"}`, status: http.StatusOK},
		{name: "unknown customer", path: "/customers/c9", body: `{"name":"X"}`, status: http.StatusNotFound},
		{name: "unknown field", path: "/customers/c1", body: `{"nickname":"J"}`, status: http.StatusBadRequest},
		{name: "reprice product", path: "/products/p1?reprice=true", body: `{"unitPrice":120}`, status: http.StatusOK},
		{name: "negative price", path: "/products/p1", body: `{"unitPrice":-1}`, status: http.StatusBadRequest},
		{name: "bad reprice flag", path: "/products/p1?reprice=perhaps", body: `{}`, status: http.StatusBadRequest},
		{name: "duplicate serial", path: "/invoices/" + first.ID, body: `{"serialNumber":"INV-2"}`, status: http.StatusConflict},
		{name: "line qty", path: "/invoices/" + first.ID + "/line-items/" + first.LineItems[0].ID, body: `{"qty":3}`, status: http.StatusOK},
		{name: "line qty missing", path: "/invoices/" + first.ID + "/line-items/" + first.LineItems[0].ID, body: `{}`, status: http.StatusBadRequest},
		{name: "unknown line", path: "/invoices/" + first.ID + "/line-items/nope", body: `{"qty":1}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := srv.do(t, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, "%v", body)
		})
	}

	after := srv.dataset(t)
	assert.Equal(t, "John Smith", after.Customers["c1"].Name)
	assert.Equal(t, "John Smith", after.Invoices[0].CustomerName)
	assert.Equal(t, 120.0, after.Invoices[0].LineItems[0].UnitPrice)
	assert.Equal(t, 3.0, after.Invoices[0].LineItems[0].Qty)
	assert.InDelta(t, 424.8, after.Invoices[0].TotalAmount, 1e-9)
	assert.InDelta(t, 424.8+283.2, after.Customers["c1"].TotalPurchaseAmount, 1e-9)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(store.NewGatewayError("Write", "p", store.ErrPersistenceWrite, nil)))
	assert.Equal(t, http.StatusBadRequest, statusFor(store.ErrInvalidUserKey))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&batch.AllFailedError{}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestEventsStream(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.userURL("/events"), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() (string, models.Dataset) {
		var event string
		var ds models.Dataset
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ds))
			case line == "" && event != "":
				return event, ds
			}
		}
	}

	event, ds := nextEvent()
	assert.Equal(t, "dataset", event)
	assert.Empty(t, ds.Invoices)

	srv.upload(t, "scan1.png")

	event, ds = nextEvent()
	assert.Equal(t, "dataset", event)
	require.Len(t, ds.Invoices, 1)
	assert.Equal(t, "INV-1", ds.Invoices[0].SerialNumber)
}
