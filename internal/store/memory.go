package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

type memorySubscriber struct {
	onChange func(models.Dataset)
}

// MemoryGateway keeps documents in process memory. Documents are stored
// encoded so callers never share maps or slices with the store.
type MemoryGateway struct {
	appID string
	log   zerolog.Logger

	mu     sync.RWMutex
	docs   map[string][]byte
	subs   map[string]map[int]*memorySubscriber
	nextID int
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway(appID string) *MemoryGateway {
	return &MemoryGateway{
		appID: appID,
		log:   logger.WithComponent("store.memory"),
		docs:  make(map[string][]byte),
		subs:  make(map[string]map[int]*memorySubscriber),
	}
}

// Read returns the stored dataset or the empty dataset.
func (g *MemoryGateway) Read(ctx context.Context, userKey string) (models.Dataset, error) {
	const op = "Read"

	if err := validateUserKey(userKey); err != nil {
		return models.Dataset{}, err
	}
	path := DocumentPath(g.appID, userKey)
	if err := ctx.Err(); err != nil {
		return models.Dataset{}, NewGatewayError(op, path, ErrPersistenceRead, err)
	}

	g.mu.RLock()
	data, ok := g.docs[path]
	g.mu.RUnlock()

	if !ok {
		return models.NewDataset(), nil
	}
	ds, err := decodeDataset(data)
	if err != nil {
		return models.Dataset{}, NewGatewayError(op, path, ErrPersistenceRead, err)
	}
	return ds, nil
}

// Write replaces the stored dataset and notifies subscribers synchronously.
func (g *MemoryGateway) Write(ctx context.Context, userKey string, ds models.Dataset) error {
	const op = "Write"

	if err := validateUserKey(userKey); err != nil {
		return err
	}
	path := DocumentPath(g.appID, userKey)
	if err := ctx.Err(); err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}

	data, err := encodeDataset(ds)
	if err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}

	g.mu.Lock()
	g.docs[path] = data
	subs := make([]*memorySubscriber, 0, len(g.subs[path]))
	for _, s := range g.subs[path] {
		subs = append(subs, s)
	}
	g.mu.Unlock()

	g.log.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Int("subscribers", len(subs)).
		Msg("Dataset written")

	g.notify(path, data, subs)
	return nil
}

// notify hands every subscriber its own decoded copy of data.
func (g *MemoryGateway) notify(path string, data []byte, subs []*memorySubscriber) {
	for _, s := range subs {
		snapshot, err := decodeDataset(data)
		if err != nil {
			g.log.Warn().Err(err).Str("path", path).Msg("Dropping change notification")
			continue
		}
		s.onChange(snapshot)
	}
}

// Subscribe delivers the current dataset before returning and every later write
// until unsubscribed. Memory subscriptions never fail, so onError is unused.
func (g *MemoryGateway) Subscribe(ctx context.Context, userKey string, onChange func(models.Dataset), onError func(error)) (func(), error) {
	if err := validateUserKey(userKey); err != nil {
		return nil, err
	}
	path := DocumentPath(g.appID, userKey)

	current, err := g.Read(ctx, userKey)
	if err != nil {
		return nil, NewGatewayError("Subscribe", path, ErrSubscribe, err)
	}

	g.mu.Lock()
	id := g.nextID
	g.nextID++
	if g.subs[path] == nil {
		g.subs[path] = make(map[int]*memorySubscriber)
	}
	g.subs[path][id] = &memorySubscriber{onChange: onChange}
	g.mu.Unlock()

	onChange(current)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs[path], id)
			if len(g.subs[path]) == 0 {
				delete(g.subs, path)
			}
			g.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return unsubscribe, nil
}

// Subscribers returns the number of active subscriptions for userKey.
func (g *MemoryGateway) Subscribers(userKey string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.subs[DocumentPath(g.appID, userKey)])
}

// Close drops every subscription.
func (g *MemoryGateway) Close() error {
	g.mu.Lock()
	g.subs = make(map[string]map[int]*memorySubscriber)
	g.mu.Unlock()
	return nil
}
