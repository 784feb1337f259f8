// Package api exposes uploads, the dataset, field edits and live updates
// over HTTP.
//
// Routes (all under /api/v1/users/{userID}):
//
//	GET    /dataset                      dataset, invoices sorted by ?sort=&desc=
//	DELETE /dataset                      reset to the empty dataset
//	GET    /summary                      counts and missing-field warnings
//	POST   /uploads                      multipart "files", runs a batch
//	PATCH  /customers/{id}               CustomerPatch
//	PATCH  /products/{id}?reprice=true   ProductPatch
//	PATCH  /invoices/{id}                InvoicePatch
//	PATCH  /invoices/{id}/line-items/{lineID}  {"qty": n}
//	GET    /events                       server-sent events, one per dataset change
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the handler into a chi router.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/dataset", handler.GetDataset)
			r.Delete("/dataset", handler.ResetDataset)
			r.Get("/summary", handler.GetSummary)

			r.Patch("/customers/{id}", handler.PatchCustomer)
			r.Patch("/products/{id}", handler.PatchProduct)
			r.Patch("/invoices/{id}", handler.PatchInvoice)
			r.Patch("/invoices/{id}/line-items/{lineID}", handler.PatchLineItem)
		})

		// Extraction retries several files at once; give it room
		r.With(middleware.Timeout(5*time.Minute)).Post("/uploads", handler.Upload)

		r.Get("/events", handler.Events)
	})

	return r
}
