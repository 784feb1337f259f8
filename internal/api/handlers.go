package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/batch"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/store"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// maxUploadBytes caps a whole multipart upload.
const maxUploadBytes = 32 << 20

type Handler struct {
	processor *batch.Processor
	gateway   store.Gateway
	engine    *reconcile.Engine
	log       zerolog.Logger
}

func NewHandler(processor *batch.Processor, gateway store.Gateway, engine *reconcile.Engine) *Handler {
	return &Handler{
		processor: processor,
		gateway:   gateway,
		engine:    engine,
		log:       logger.WithComponent("api"),
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key := reconcile.SortKey(strings.ToLower(strings.TrimSpace(query.Get("sort"))))
	if key == "" {
		key = reconcile.SortByDate
	}
	desc := true
	if raw := strings.TrimSpace(query.Get("desc")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "desc must be true or false")
			return
		}
		desc = parsed
	}

	ds, err := h.gateway.Read(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	ds.Invoices = reconcile.SortInvoices(ds.Invoices, key, desc)
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) ResetDataset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ds := h.engine.Reset()
	if err := h.gateway.Write(r.Context(), userID, ds); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ds, err := h.gateway.Read(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcile.Summarize(ds))
}

type fileFailureView struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Message          string             `json:"message"`
	Total            int                `json:"total"`
	Processed        int                `json:"processed"`
	Failed           []fileFailureView  `json:"failed"`
	InvoicesAdded    int                `json:"invoicesAdded"`
	ProductsAdded    int                `json:"productsAdded"`
	ProductsUpdated  int                `json:"productsUpdated"`
	CustomersAdded   int                `json:"customersAdded"`
	DuplicateSerials []string           `json:"duplicateSerials"`
	DroppedLineItems int                `json:"droppedLineItems"`
	Summary          *reconcile.Summary `json:"summary,omitempty"`
}

func newUploadResponse(report *batch.Report) uploadResponse {
	resp := uploadResponse{
		Message:          report.String(),
		Total:            report.Total,
		Processed:        report.Processed,
		Failed:           make([]fileFailureView, 0, len(report.Failures)),
		InvoicesAdded:    report.Stats.InvoicesAdded,
		ProductsAdded:    report.Stats.ProductsAdded,
		ProductsUpdated:  report.Stats.ProductsUpdated,
		CustomersAdded:   report.Stats.CustomersAdded,
		DuplicateSerials: append([]string{}, report.Stats.DuplicateSerials...),
		DroppedLineItems: report.Stats.DroppedLineItems,
	}
	for _, f := range report.Failures {
		resp.Failed = append(resp.Failed, fileFailureView{File: f.Filename, Error: f.Err.Error()})
	}
	if report.Committed {
		s := reconcile.Summarize(report.Dataset)
		resp.Summary = &s
	}
	return resp
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "files field is required")
		return
	}

	files := make([]extraction.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to open %s", header.Filename))
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s", header.Filename))
			return
		}

		mediaType := header.Header.Get("Content-Type")
		if mediaType == "" || mediaType == "application/octet-stream" {
			mediaType = extraction.DetectMediaType(header.Filename, content)
		}
		files = append(files, extraction.File{
			Name:      header.Filename,
			MediaType: mediaType,
			Content:   content,
		})
	}

	report, err := h.processor.Process(r.Context(), userID, files)
	if err != nil {
		if report != nil && errors.Is(err, batch.ErrAllFilesFailed) {
			resp := newUploadResponse(report)
			resp.Message = err.Error()
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUploadResponse(report))
}

// edit reads the dataset, applies fn and commits the result.
func (h *Handler) edit(w http.ResponseWriter, r *http.Request, fn func(models.Dataset) (models.Dataset, error)) {
	userID := chi.URLParam(r, "userID")

	current, err := h.gateway.Read(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	updated, err := fn(current)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.gateway.Write(r.Context(), userID, updated); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) PatchCustomer(w http.ResponseWriter, r *http.Request) {
	var patch reconcile.CustomerPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	h.edit(w, r, func(ds models.Dataset) (models.Dataset, error) {
		return h.engine.UpdateCustomer(ds, id, patch)
	})
}

func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	reprice := false
	if raw := strings.TrimSpace(r.URL.Query().Get("reprice")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reprice must be true or false")
			return
		}
		reprice = parsed
	}

	var patch reconcile.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	h.edit(w, r, func(ds models.Dataset) (models.Dataset, error) {
		return h.engine.UpdateProduct(ds, id, patch, reprice)
	})
}

func (h *Handler) PatchInvoice(w http.ResponseWriter, r *http.Request) {
	var patch reconcile.InvoicePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	h.edit(w, r, func(ds models.Dataset) (models.Dataset, error) {
		return h.engine.UpdateInvoice(ds, id, patch)
	})
}

type lineItemRequest struct {
	Qty *float64 `json:"qty"`
}

func (h *Handler) PatchLineItem(w http.ResponseWriter, r *http.Request) {
	var req lineItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Qty == nil {
		writeError(w, http.StatusBadRequest, "qty is required")
		return
	}
	invoiceID := chi.URLParam(r, "id")
	lineID := chi.URLParam(r, "lineID")
	h.edit(w, r, func(ds models.Dataset) (models.Dataset, error) {
		return h.engine.UpdateLineItemQty(ds, invoiceID, lineID, *req.Qty)
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrDuplicateSerial):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrInvalidValue),
		errors.Is(err, store.ErrInvalidUserKey),
		errors.Is(err, batch.ErrNoFiles):
		return http.StatusBadRequest
	case errors.Is(err, batch.ErrAllFilesFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrPersistenceWrite),
		errors.Is(err, store.ErrPersistenceRead):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log := logger.WithComponent("api")
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
