package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// keepAliveInterval keeps idle proxies from closing the stream.
const keepAliveInterval = 25 * time.Second

// Events streams the dataset as server-sent events: one "dataset" event with
// the current state, then one per change. A subscription failure is sent as
// an "error" event and ends the stream.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	userID := chi.URLParam(r, "userID")

	// Only the newest dataset matters to a slow client
	updates := make(chan models.Dataset, 1)
	failures := make(chan error, 1)

	onChange := func(ds models.Dataset) {
		for {
			select {
			case updates <- ds:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	onError := func(err error) {
		select {
		case failures <- err:
		default:
		}
	}

	unsubscribe, err := h.gateway.Subscribe(r.Context(), userID, onChange, onError)
	if err != nil {
		writeFailure(w, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := h.log.With().Str("user_id", userID).Logger()
	log.Debug().Msg("Event stream opened")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Msg("Event stream closed")
			return
		case ds := <-updates:
			if err := writeEvent(w, "dataset", ds); err != nil {
				log.Warn().Err(err).Msg("Failed to write event")
				return
			}
			flusher.Flush()
		case err := <-failures:
			_ = writeEvent(w, "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
