package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// DefaultChangeTopic is used when KAFKA_TOPIC is empty.
const DefaultChangeTopic = "dataset-changes"

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ChangeEvent is published after every committed write.
type ChangeEvent struct {
	Path       string    `json:"path"`
	UserKey    string    `json:"userKey"`
	Invoices   int       `json:"invoices"`
	Products   int       `json:"products"`
	Customers  int       `json:"customers"`
	GrandTotal float64   `json:"grandTotal"`
	WrittenAt  time.Time `json:"writtenAt"`
}

// PublishingGateway wraps a Gateway and publishes a ChangeEvent, keyed by
// user, for every successful write. Reads and subscriptions pass through.
type PublishingGateway struct {
	Gateway

	writer Writer
	appID  string
	now    func() time.Time
	log    zerolog.Logger
}

// NewPublishingGateway publishes to topic on brokers.
func NewPublishingGateway(inner Gateway, brokers []string, topic, appID string) *PublishingGateway {
	if topic == "" {
		topic = DefaultChangeTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return NewPublishingGatewayWithWriter(inner, w, appID)
}

// NewPublishingGatewayWithWriter allows injecting a test writer.
func NewPublishingGatewayWithWriter(inner Gateway, w Writer, appID string) *PublishingGateway {
	return &PublishingGateway{
		Gateway: inner,
		writer:  w,
		appID:   appID,
		now:     time.Now,
		log:     logger.WithComponent("store.publisher"),
	}
}

// Write commits through the wrapped gateway, then publishes. A failed publish
// is logged and does not fail the write; the document is already committed.
func (g *PublishingGateway) Write(ctx context.Context, userKey string, ds models.Dataset) error {
	if err := g.Gateway.Write(ctx, userKey, ds); err != nil {
		return err
	}

	event := ChangeEvent{
		Path:      DocumentPath(g.appID, userKey),
		UserKey:   userKey,
		Invoices:  len(ds.Invoices),
		Products:  len(ds.Products),
		Customers: len(ds.Customers),
		WrittenAt: g.now().UTC(),
	}
	for _, inv := range ds.Invoices {
		event.GrandTotal += inv.TotalAmount
	}

	if err := g.publish(ctx, userKey, event); err != nil {
		g.log.Warn().
			Err(err).
			Str("path", event.Path).
			Msg("Failed to publish dataset change")
	}
	return nil
}

func (g *PublishingGateway) publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return g.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

// Close closes the writer and the wrapped gateway.
func (g *PublishingGateway) Close() error {
	werr := g.writer.Close()
	if err := g.Gateway.Close(); err != nil {
		return err
	}
	return werr
}
