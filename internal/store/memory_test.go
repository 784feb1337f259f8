package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

func sampleDataset() models.Dataset {
	ds := models.NewDataset()
	ds.Customers["c1"] = models.Customer{ID: "c1", Name: "John", TotalPurchaseAmount: 236}
	ds.Products["p1"] = models.Product{ID: "p1", Name: "Widget", Quantity: models.Float(5), UnitPrice: models.Float(100), Tax: 18}
	ds.Invoices = []models.Invoice{{
		ID:           "i1",
		SerialNumber: "INV-1",
		CustomerID:   "c1",
		CustomerName: "John",
		Status:       models.StatusPending,
		TotalAmount:  236,
		LineItems:    []models.LineItem{{ID: "l1", ProductID: "p1", Qty: 2, UnitPrice: 100, Tax: 18, TotalAmount: 236}},
	}}
	return ds
}

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, "artifacts/app/users/u1/invoice_data/data_summary", DocumentPath("app", "u1"))
}

func TestMemoryGatewayReadWrite(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway("app")

	empty, err := gw.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, empty.Invoices)
	assert.NotNil(t, empty.Products)

	require.NoError(t, gw.Write(ctx, "u1", sampleDataset()))

	got, err := gw.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sampleDataset(), got)

	other, err := gw.Read(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other.Invoices, "documents are per user")
}

func TestMemoryGatewayWriteReplacesDocument(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway("app")

	require.NoError(t, gw.Write(ctx, "u1", sampleDataset()))
	require.NoError(t, gw.Write(ctx, "u1", models.NewDataset()))

	got, err := gw.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Invoices)
	assert.Empty(t, got.Customers)
}

func TestMemoryGatewayDoesNotShareState(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway("app")
	ds := sampleDataset()
	require.NoError(t, gw.Write(ctx, "u1", ds))

	ds.Invoices[0].SerialNumber = "changed"
	got, _ := gw.Read(ctx, "u1")
	assert.Equal(t, "INV-1", got.Invoices[0].SerialNumber)

	got.Customers["c1"] = models.Customer{ID: "c1", Name: "mutated"}
	again, _ := gw.Read(ctx, "u1")
	assert.Equal(t, "John", again.Customers["c1"].Name)
}

func TestMemoryGatewayInvalidUserKey(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway("app")

	for _, key := range []string{"", "  ", "a/b"} {
		_, err := gw.Read(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidUserKey, key)
		assert.ErrorIs(t, gw.Write(ctx, key, models.NewDataset()), ErrInvalidUserKey, key)
	}
}

func TestMemoryGatewayCanceledWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryGateway("app").Write(ctx, "u1", sampleDataset())
	assert.True(t, IsWriteError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryGatewayNotifyLogsUndecodableSnapshot(t *testing.T) {
	var buf bytes.Buffer
	gw := NewMemoryGateway("app")
	gw.log = zerolog.New(&buf)

	calls := 0
	subs := []*memorySubscriber{{onChange: func(models.Dataset) { calls++ }}}

	gw.notify("artifacts/app/users/u1/invoice_data/data_summary", []byte("{not json"), subs)

	assert.Zero(t, calls)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "Dropping change notification")
	assert.Contains(t, buf.String(), "data_summary")
}

func TestMemoryGatewaySubscribe(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway("app")
	require.NoError(t, gw.Write(ctx, "u1", sampleDataset()))

	var seen []models.Dataset
	unsubscribe, err := gw.Subscribe(ctx, "u1", func(ds models.Dataset) {
		seen = append(seen, ds)
	}, func(error) {
		t.Fatal("memory subscriptions never fail")
	})
	require.NoError(t, err)

	require.Len(t, seen, 1, "current dataset is delivered first")
	assert.Len(t, seen[0].Invoices, 1)
	assert.Equal(t, 1, gw.Subscribers("u1"))

	require.NoError(t, gw.Write(ctx, "u1", models.NewDataset()))
	require.Len(t, seen, 2)
	assert.Empty(t, seen[1].Invoices)

	require.NoError(t, gw.Write(ctx, "u2", sampleDataset()))
	assert.Len(t, seen, 2, "other users' writes are not delivered")

	unsubscribe()
	unsubscribe()
	assert.Zero(t, gw.Subscribers("u1"))

	require.NoError(t, gw.Write(ctx, "u1", sampleDataset()))
	assert.Len(t, seen, 2)
}

func TestMemoryGatewayClose(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway("app")
	_, err := gw.Subscribe(ctx, "u1", func(models.Dataset) {}, nil)
	require.NoError(t, err)

	require.NoError(t, gw.Close())
	assert.Zero(t, gw.Subscribers("u1"))
}

func TestGatewayError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewGatewayError("Write", DocumentPath("app", "u1"), ErrPersistenceWrite, cause)

	assert.ErrorIs(t, err, ErrPersistenceWrite)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPersistenceRead)
	assert.True(t, IsWriteError(err))
	assert.Equal(t, "store: Write artifacts/app/users/u1/invoice_data/data_summary: failed to write dataset: connection refused", err.Error())

	bare := NewGatewayError("Read", "p", ErrPersistenceRead, nil)
	assert.Equal(t, "store: Read p: failed to read dataset", bare.Error())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "sqlite"})
	assert.Error(t, err)

	gw, err := Open(context.Background(), Config{Backend: BackendMemory, AppID: "app"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryGateway{}, gw)
}
