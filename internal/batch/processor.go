// Package batch runs an upload end to end: concurrent extraction of every
// file, an ordered merge of the successful payloads into the user's current
// dataset, and a single commit.
//
// Per-file extraction errors never abort the batch. If at least one file
// succeeds its payload is merged and committed and the failures are
// reported alongside. If every file fails, an *AllFailedError is returned and
// the store is not touched. A failed commit is returned as-is and the merged
// dataset is discarded.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/store"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// DefaultWorkers bounds concurrent extraction calls.
const DefaultWorkers = 12

// Report describes the outcome of one batch.
type Report struct {
	Total     int
	Processed int
	Failures  []FileFailure
	Stats     reconcile.MergeStats
	Dataset   models.Dataset // Committed dataset; empty when nothing was committed
	Committed bool
	Duration  time.Duration
}

// FailedFiles lists the failed files in submission order.
func (r *Report) FailedFiles() []string {
	names := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		names[i] = f.Filename
	}
	return names
}

// String renders e.g. "processed 3 of 4 files; failed: invoice_scan2.pdf".
func (r *Report) String() string {
	s := fmt.Sprintf("processed %d of %d files", r.Processed, r.Total)
	if len(r.Failures) > 0 {
		s += "; failed: " + strings.Join(r.FailedFiles(), ", ")
	}
	return s
}

// Processor runs batches for any user.
type Processor struct {
	extractor extraction.Extractor
	gateway   store.Gateway
	engine    *reconcile.Engine
	workers   int
	progress  extraction.ProgressFunc
	log       zerolog.Logger
}

// NewProcessor creates a processor. workers < 1 uses DefaultWorkers.
func NewProcessor(extractor extraction.Extractor, gateway store.Gateway, engine *reconcile.Engine, workers int) *Processor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if engine == nil {
		engine = reconcile.NewEngine()
	}
	return &Processor{
		extractor: extractor,
		gateway:   gateway,
		engine:    engine,
		workers:   workers,
		log:       logger.WithComponent("batch"),
	}
}

// OnProgress registers a callback for every finished extraction.
func (p *Processor) OnProgress(fn extraction.ProgressFunc) {
	p.progress = fn
}

// Process extracts files, merges the successes in submission order into the
// stored dataset of userKey and commits once. The returned report is non-nil
// whenever extraction ran, even if an error is returned.
func (p *Processor) Process(ctx context.Context, userKey string, files []extraction.File) (*Report, error) {
	const op = "Process"

	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoFiles)
	}

	start := time.Now()
	log := logger.WithUserID("batch", userKey)
	log.Info().
		Int("files", len(files)).
		Int("workers", p.workers).
		Msg("Starting batch")

	results := extraction.ExtractAll(ctx, p.extractor, files, p.workers, log, p.progress)

	report := &Report{Total: len(files)}
	payloads := make([]*models.RawPayload, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			payloads = append(payloads, r.Payload)
			continue
		}
		err := r.Error
		if err == nil {
			err = extraction.NewExtractionError(op, extraction.ErrMalformedResponse, "no payload")
		}
		report.Failures = append(report.Failures, FileFailure{Filename: r.Filename, Err: err})
		log.Warn().
			Err(err).
			Str("file", r.Filename).
			Msg("File failed")
	}
	report.Processed = len(payloads)

	if len(payloads) == 0 {
		report.Duration = time.Since(start)
		log.Error().Int("files", len(files)).Msg("Every file failed, nothing committed")
		return report, &AllFailedError{Failures: report.Failures}
	}

	current, err := p.gateway.Read(ctx, userKey)
	if err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("%s: %w", op, err)
	}

	merged := current
	for _, payload := range payloads {
		var stats reconcile.MergeStats
		merged, stats = p.engine.Merge(merged, payload)
		report.Stats.Add(stats)
	}

	if err := p.gateway.Write(ctx, userKey, merged); err != nil {
		report.Duration = time.Since(start)
		log.Error().Err(err).Msg("Commit failed, merge discarded")
		return report, err
	}

	report.Dataset = merged
	report.Committed = true
	report.Duration = time.Since(start)

	log.Info().
		Int("processed", report.Processed).
		Int("failed", len(report.Failures)).
		Int("invoices_added", report.Stats.InvoicesAdded).
		Int("duplicates", len(report.Stats.DuplicateSerials)).
		Dur("duration", report.Duration).
		Msg("Batch committed")

	return report, nil
}
