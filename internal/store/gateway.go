// Package store persists one Dataset document per user and pushes changes
// to subscribers.
//
// Every write replaces the whole document; there is no partial update and no
// conflict detection (last write wins). Documents live at
//
//	artifacts/{appId}/users/{userId}/invoice_data/data_summary
//
// Backends:
//   - memory: process-local, for tests and development
//   - postgres: JSONB row per document, changes pushed with LISTEN/NOTIFY
//   - firestore: the document path above, changes pushed with snapshot listeners
//
// When KAFKA_BROKERS is set every successful write also publishes a change
// event to KAFKA_TOPIC.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Gateway reads, overwrites and watches a user's dataset.
type Gateway interface {
	// Read returns the stored dataset, or the empty dataset if none exists yet.
	Read(ctx context.Context, userKey string) (models.Dataset, error)

	// Write replaces the stored dataset.
	Write(ctx context.Context, userKey string, ds models.Dataset) error

	// Subscribe delivers the current dataset and then every change until the
	// returned unsubscribe func is called or ctx ends. onError is called at
	// most once, after which no more changes are delivered.
	Subscribe(ctx context.Context, userKey string, onChange func(models.Dataset), onError func(error)) (unsubscribe func(), err error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend          string
	AppID            string
	DatabaseURL      string
	FirestoreProject string
	KafkaBrokers     []string
	KafkaTopic       string
}

// DocumentPath returns the logical path of a user's dataset document.
func DocumentPath(appID, userID string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/invoice_data/data_summary", appID, userID)
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Gateway, error) {
	const op = "Open"

	var (
		gw  Gateway
		err error
	)
	switch cfg.Backend {
	case BackendMemory:
		gw = NewMemoryGateway(cfg.AppID)
	case BackendPostgres, "":
		gw, err = NewPostgresGateway(ctx, cfg.DatabaseURL, cfg.AppID)
	case BackendFirestore:
		gw, err = NewFirestoreGateway(ctx, cfg.FirestoreProject, cfg.AppID)
	default:
		return nil, fmt.Errorf("%s: unknown backend %q", op, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(cfg.KafkaBrokers) > 0 {
		gw = NewPublishingGateway(gw, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.AppID)
	}

	log := logger.WithComponent("store")
	log.Info().
		Str("backend", cfg.Backend).
		Str("app_id", cfg.AppID).
		Bool("publish_changes", len(cfg.KafkaBrokers) > 0).
		Msg("Persistence gateway ready")

	return gw, nil
}

func validateUserKey(userKey string) error {
	if strings.TrimSpace(userKey) == "" || strings.Contains(userKey, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidUserKey, userKey)
	}
	return nil
}

func encodeDataset(ds models.Dataset) ([]byte, error) {
	ds.Normalize()
	return json.Marshal(ds)
}

func decodeDataset(data []byte) (models.Dataset, error) {
	ds := models.NewDataset()
	if err := json.Unmarshal(data, &ds); err != nil {
		return models.Dataset{}, err
	}
	ds.Normalize()
	return ds, nil
}
