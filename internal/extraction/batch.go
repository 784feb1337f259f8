package extraction

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// Result is the outcome of extracting one file of a batch.
type Result struct {
	Filename string
	Index    int // Submission order
	Payload  *models.RawPayload
	Error    error
}

// Succeeded reports whether the file produced a payload.
func (r Result) Succeeded() bool {
	return r.Error == nil && r.Payload != nil
}

// ProgressFunc is called once per finished file, serialized, with the number
// of files finished so far.
type ProgressFunc func(done, total int, r Result)

type workerJob struct {
	File  File
	Index int
}

// ExtractAll extracts every file concurrently with at most workers in flight.
// One file failing never stops the others. Results are returned in
// submission order regardless of completion order.
// progress may be nil.
func ExtractAll(ctx context.Context, extractor Extractor, files []File, workers int, log zerolog.Logger, progress ProgressFunc) []Result {
	results := make([]Result, len(files))
	if len(files) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan workerJob, len(files))

	var (
		mu   sync.Mutex
		done int
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.File.Name).
					Int("index", job.Index+1).
					Msg("Worker extracting file")

				payload, err := extractor.Extract(ctx, job.File)

				// Each worker writes only its own slot
				results[job.Index] = Result{
					Filename: job.File.Name,
					Index:    job.Index,
					Payload:  payload,
					Error:    err,
				}

				mu.Lock()
				done++
				if progress != nil {
					progress(done, len(files), results[job.Index])
				}
				mu.Unlock()
			}
		}(w)
	}

	for i, f := range files {
		jobs <- workerJob{File: f, Index: i}
	}
	close(jobs)

	wg.Wait()
	return results
}
