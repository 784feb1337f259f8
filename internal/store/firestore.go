package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// FirestoreGateway keeps each dataset as a single Firestore document at
// DocumentPath. Documents use the JSON field names of pkg/models so they stay
// readable by other clients of the same collection.
type FirestoreGateway struct {
	client *firestore.Client
	appID  string
	log    zerolog.Logger
}

// NewFirestoreGateway creates a client using Application Default Credentials.
func NewFirestoreGateway(ctx context.Context, projectID, appID string, opts ...option.ClientOption) (*FirestoreGateway, error) {
	if projectID == "" {
		return nil, errors.New("FIRESTORE_PROJECT is required for the firestore backend")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewFirestoreGatewayWithClient(client, appID), nil
}

// NewFirestoreGatewayWithClient wraps an existing client (for the emulator in tests).
func NewFirestoreGatewayWithClient(client *firestore.Client, appID string) *FirestoreGateway {
	return &FirestoreGateway{
		client: client,
		appID:  appID,
		log:    logger.WithComponent("store.firestore"),
	}
}

func (g *FirestoreGateway) doc(op, userKey string) (*firestore.DocumentRef, string, error) {
	if err := validateUserKey(userKey); err != nil {
		return nil, "", err
	}
	path := DocumentPath(g.appID, userKey)
	ref := g.client.Doc(path)
	if ref == nil {
		return nil, path, NewGatewayError(op, path, ErrInvalidUserKey, nil)
	}
	return ref, path, nil
}

// Read fetches the document. A missing document is the empty dataset.
func (g *FirestoreGateway) Read(ctx context.Context, userKey string) (models.Dataset, error) {
	const op = "Read"

	ref, path, err := g.doc(op, userKey)
	if err != nil {
		return models.Dataset{}, err
	}

	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.NewDataset(), nil
	}
	if err != nil {
		return models.Dataset{}, NewGatewayError(op, path, ErrPersistenceRead, err)
	}

	ds, err := snapshotDataset(snap)
	if err != nil {
		return models.Dataset{}, NewGatewayError(op, path, ErrPersistenceRead, err)
	}
	return ds, nil
}

// Write overwrites the document.
func (g *FirestoreGateway) Write(ctx context.Context, userKey string, ds models.Dataset) error {
	const op = "Write"

	ref, path, err := g.doc(op, userKey)
	if err != nil {
		return err
	}

	data, err := encodeDataset(ds)
	if err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}

	if _, err := ref.Set(ctx, fields); err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}

	g.log.Debug().Str("path", path).Msg("Dataset written")
	return nil
}

// Subscribe attaches a snapshot listener. The first snapshot is the current
// document.
func (g *FirestoreGateway) Subscribe(ctx context.Context, userKey string, onChange func(models.Dataset), onError func(error)) (func(), error) {
	const op = "Subscribe"

	ref, path, err := g.doc(op, userKey)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	it := ref.Snapshots(subCtx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			snap, err := it.Next()
			if err != nil {
				if subCtx.Err() == nil && status.Code(err) != codes.Canceled {
					onError(NewGatewayError(op, path, ErrSubscribe, err))
				}
				return
			}
			if !snap.Exists() {
				onChange(models.NewDataset())
				continue
			}
			ds, err := snapshotDataset(snap)
			if err != nil {
				onError(NewGatewayError(op, path, ErrSubscribe, err))
				return
			}
			onChange(ds)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
			<-done
		})
	}, nil
}

// Close closes the client.
func (g *FirestoreGateway) Close() error {
	return g.client.Close()
}

func snapshotDataset(snap *firestore.DocumentSnapshot) (models.Dataset, error) {
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return models.Dataset{}, err
	}
	return decodeDataset(data)
}
