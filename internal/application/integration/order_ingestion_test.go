package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storelink/backend/internal/domain/integration"
)

func paidOrder(id, sku string, qty int) integration.RemoteOrder {
	return integration.RemoteOrder{
		OrderID: id,
		Status:  integration.OrderStatusPayed,
		Lines: []integration.OrderLine{{
			LineID:   id + "-1",
			SKU:      sku,
			Quantity: qty,
			Status:   integration.OrderStatusPayed,
		}},
	}
}

func onPage(page int) any {
	return mock.MatchedBy(func(q integration.OrderQuery) bool { return q.Page == page })
}

type ingestFixture struct {
	*fixture
	source   *MockOrderSource
	acks     *memoryAcks
	pipeline *OrderIngestionPipeline
}

func newIngestFixture(t *testing.T, cfg OrderIngestionConfig) *ingestFixture {
	t.Helper()
	f := newFixture(t, linkedMapping(t, "ALBUM-001", "p1"))
	f.smartstore.stock["p1"] = 10
	f.shopify.stock["p1"] = 10
	source := new(MockOrderSource)
	acks := newMemoryAcks()
	return &ingestFixture{
		fixture:  f,
		source:   source,
		acks:     acks,
		pipeline: NewOrderIngestionPipeline(source, f.reconciler, acks, cfg, nil),
	}
}

func TestOrderIngestion_DecrementsBothPlatforms(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders:   []integration.RemoteOrder{paidOrder("o-1", "ALBUM-001", 3)},
		Page:     1,
		PageSize: 100,
		Fetched:  1,
	}, nil).Once()

	result, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Orders)
	assert.Equal(t, 1, result.Acknowledged)
	assert.Equal(t, 1, result.LinesApplied)
	assert.Equal(t, 7, f.smartstore.quantity("p1"))
	assert.Equal(t, 7, f.shopify.quantity("p1"))

	for _, tx := range f.txs.all() {
		assert.Equal(t, integration.ActorWebhook, tx.Actor)
		assert.Equal(t, integration.AdjustSubtract, tx.AdjustType)
	}
	assert.True(t, f.acks.has("order:o-1"))
	assert.True(t, f.acks.has("order-line:o-1-1:SMARTSTORE"))
	assert.True(t, f.acks.has("order-line:o-1-1:SHOPIFY"))
	assert.Equal(t, DefaultOrderAckTTL, f.acks.keys["order:o-1"])
	f.source.AssertExpectations(t)
}

func TestOrderIngestion_Pagination(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})

	first := make([]integration.RemoteOrder, 0, 100)
	first = append(first, paidOrder("o-0", "ALBUM-001", 2))
	for i := 1; i < 100; i++ {
		first = append(first, paidOrder(fmt.Sprintf("o-%d", i), fmt.Sprintf("UNMAPPED-%d", i), 1))
	}
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: first, Page: 1, PageSize: 100, Fetched: 100,
	}, nil).Once()
	f.source.On("ListOrders", mock.Anything, onPage(2)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{paidOrder("o-100", "ALBUM-001", 1)}, Page: 2, PageSize: 100, Fetched: 1,
	}, nil).Once()

	result, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 101, result.Orders)
	assert.Equal(t, 101, result.Acknowledged)
	assert.Equal(t, 2, result.LinesApplied)
	assert.Equal(t, 99, result.LinesSkipped)
	assert.Equal(t, 7, f.smartstore.quantity("p1"))
	assert.Equal(t, 7, f.shopify.quantity("p1"))
	f.source.AssertExpectations(t)
}

func TestOrderIngestion_IdempotentReingest(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{paidOrder("o-1", "ALBUM-001", 3)}, Page: 1, PageSize: 100, Fetched: 1,
	}, nil).Twice()

	since := f.now.Add(-time.Hour)
	_, err := f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.NoError(t, err)

	result, err := f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlreadyAcknowledged)
	assert.Equal(t, 0, result.LinesApplied)
	assert.Equal(t, 7, f.smartstore.quantity("p1"))
	assert.Equal(t, 7, f.shopify.quantity("p1"))
	assert.Len(t, f.txs.all(), 2)
}

func TestOrderIngestion_PartialFailureRetriesOnlyFailedPlatform(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{paidOrder("o-1", "ALBUM-001", 3)}, Page: 1, PageSize: 100, Fetched: 1,
	}, nil).Twice()
	f.smartstore.setErr = integration.ErrTransientRemote

	since := f.now.Add(-time.Hour)
	result, err := f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LinesFailed)
	assert.Equal(t, 0, result.Acknowledged)
	assert.Equal(t, 1, result.Counts().Failed)
	assert.False(t, f.acks.has("order:o-1"))
	assert.True(t, f.acks.has("order-line:o-1-1:SHOPIFY"))
	assert.Equal(t, 7, f.shopify.quantity("p1"))
	assert.Equal(t, 10, f.smartstore.quantity("p1"))

	f.smartstore.setErr = nil
	result, err = f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Acknowledged)
	assert.Equal(t, 7, f.smartstore.quantity("p1"))
	assert.Equal(t, 7, f.shopify.quantity("p1"))
}

// orderPart returns one line of a multi-line order, as a page that ends
// mid-order would list it
func orderPart(id, lineID, sku string, qty int) integration.RemoteOrder {
	o := paidOrder(id, sku, qty)
	o.Lines[0].LineID = lineID
	return o
}

func TestOrderIngestion_OrderSplitAcrossPages(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{PageSize: 1})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{orderPart("o-1", "L1", "ALBUM-001", 1)}, Page: 1, PageSize: 1, Fetched: 1,
	}, nil).Once()
	f.source.On("ListOrders", mock.Anything, onPage(2)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{orderPart("o-1", "L2", "ALBUM-001", 1)}, Page: 2, PageSize: 1, Fetched: 1,
	}, nil).Once()
	f.source.On("ListOrders", mock.Anything, onPage(3)).Return(&integration.OrderPage{
		Page: 3, PageSize: 1,
	}, nil).Once()

	result, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Orders)
	assert.Equal(t, 1, result.Acknowledged)
	assert.Equal(t, 2, result.LinesApplied)
	assert.Equal(t, 8, f.smartstore.quantity("p1"))
	assert.Equal(t, 8, f.shopify.quantity("p1"))
	assert.True(t, f.acks.has("order:o-1"))
	assert.True(t, f.acks.has("order-line:L1:SMARTSTORE"))
	assert.True(t, f.acks.has("order-line:L2:SHOPIFY"))
	f.source.AssertExpectations(t)
}

func TestOrderIngestion_AbortedPassLeavesSplitOrderOpen(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{PageSize: 1})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{orderPart("o-1", "L1", "ALBUM-001", 1)}, Page: 1, PageSize: 1, Fetched: 1,
	}, nil).Once()
	f.source.On("ListOrders", mock.Anything, onPage(2)).Return(nil,
		integration.NewHTTPError(integration.PlatformSmartStore, "list orders", 503, "unavailable")).Once()

	since := f.now.Add(-time.Hour)
	result, err := f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 0, result.Acknowledged)
	assert.False(t, f.acks.has("order:o-1"))
	assert.True(t, f.acks.has("order-line:L1:SMARTSTORE"))
	assert.Equal(t, 9, f.smartstore.quantity("p1"))

	// the next pass reads the whole order and applies only the unseen line
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{orderPart("o-1", "L1", "ALBUM-001", 1)}, Page: 1, PageSize: 1, Fetched: 1,
	}, nil).Once()
	f.source.On("ListOrders", mock.Anything, onPage(2)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{orderPart("o-1", "L2", "ALBUM-001", 1)}, Page: 2, PageSize: 1, Fetched: 1,
	}, nil).Once()
	f.source.On("ListOrders", mock.Anything, onPage(3)).Return(&integration.OrderPage{
		Page: 3, PageSize: 1,
	}, nil).Once()

	result, err = f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Acknowledged)
	assert.True(t, f.acks.has("order:o-1"))
	assert.Equal(t, 8, f.smartstore.quantity("p1"))
	assert.Equal(t, 8, f.shopify.quantity("p1"))
	f.source.AssertExpectations(t)
}

func TestOrderIngestion_ExcludedOrders(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	cancelled := paidOrder("o-1", "ALBUM-001", 3)
	cancelled.Status = integration.OrderStatusCanceled
	claimed := paidOrder("o-2", "ALBUM-001", 2)
	claimed.Lines[0].ClaimType = integration.ClaimReturn

	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{cancelled, claimed}, Page: 1, PageSize: 100, Fetched: 2,
	}, nil).Once()

	result, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Acknowledged)
	assert.Equal(t, 2, result.Excluded)
	assert.Equal(t, 0, result.LinesApplied)
	assert.Equal(t, 10, f.smartstore.quantity("p1"))
	assert.Empty(t, f.txs.all())

	counts := result.Counts()
	assert.Equal(t, 2, counts.Skipped)
	assert.Equal(t, 0, counts.Success)
}

func TestOrderIngestion_SplitsLongWindows(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	var windows []integration.OrderQuery
	f.source.On("ListOrders", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		windows = append(windows, args.Get(1).(integration.OrderQuery))
	}).Return(&integration.OrderPage{PageSize: 100}, nil)

	since := f.now.Add(-50 * time.Hour)
	_, err := f.pipeline.Ingest(context.Background(), since, nil, nil)
	require.NoError(t, err)

	require.Len(t, windows, 3)
	assert.Equal(t, since, windows[0].From)
	assert.Equal(t, since.Add(24*time.Hour), windows[0].To)
	assert.Equal(t, windows[0].To, windows[1].From)
	assert.Equal(t, f.now, windows[2].To)
	for _, w := range windows {
		assert.Equal(t, []integration.OrderStatus{integration.OrderStatusPayed}, w.Statuses)
	}
}

func TestOrderIngestion_ListingErrorFailsPass(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(nil, integration.ErrAuthFailure).Once()

	_, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, nil)
	assert.ErrorIs(t, err, integration.ErrAuthFailure)
}

func TestOrderIngestion_Cancellation(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{paidOrder("o-1", "ALBUM-001", 1)}, Page: 1, PageSize: 100, Fetched: 1,
	}, nil).Once()

	_, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, func() bool { return true })
	assert.ErrorIs(t, err, integration.ErrJobCancelled)
	assert.Equal(t, 10, f.smartstore.quantity("p1"))
	assert.False(t, f.acks.has("order:o-1"))
}

func TestOrderIngestion_ConfirmsAcknowledgedLines(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{ConfirmOrders: true})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders: []integration.RemoteOrder{paidOrder("o-1", "ALBUM-001", 1), paidOrder("o-2", "ALBUM-001", 1)},
		Page:   1, PageSize: 100, Fetched: 2,
	}, nil).Once()
	f.source.On("ConfirmOrders", mock.Anything, []string{"o-1-1", "o-2-1"}).Return(nil).Once()

	result, err := f.pipeline.Ingest(context.Background(), f.now.Add(-time.Hour), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Confirmed)
	f.source.AssertExpectations(t)
}

func TestOrderIngestion_FetchSinceStopsEarly(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(&integration.OrderPage{
		Orders:   []integration.RemoteOrder{paidOrder("o-1", "A", 1), paidOrder("o-2", "B", 1)},
		Page:     1,
		PageSize: 2,
		Fetched:  2,
	}, nil).Once()

	var got []string
	for order, err := range f.pipeline.FetchSince(context.Background(), f.now.Add(-time.Hour)) {
		require.NoError(t, err)
		got = append(got, order.OrderID)
		break
	}
	assert.Equal(t, []string{"o-1"}, got)
	f.source.AssertNotCalled(t, "ListOrders", mock.Anything, onPage(2))
}

func TestOrderIngestion_FetchSinceYieldsError(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})
	f.source.On("ListOrders", mock.Anything, onPage(1)).Return(nil, errors.New("boom")).Once()

	var errs []error
	for _, err := range f.pipeline.FetchSince(context.Background(), f.now.Add(-time.Hour)) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "boom")
}

func TestOrderIngestion_WindowStart(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{Overlap: 5 * time.Minute})

	assert.Equal(t, f.now.Add(-DefaultOrderInitialLookback), f.pipeline.WindowStart(nil))
	last := f.now.Add(-30 * time.Minute)
	assert.Equal(t, f.now.Add(-35*time.Minute), f.pipeline.WindowStart(&last))
}

func TestOrderIngestion_RejectsFutureSince(t *testing.T) {
	f := newIngestFixture(t, OrderIngestionConfig{})

	_, err := f.pipeline.Ingest(context.Background(), f.now.Add(time.Minute), nil, nil)
	assert.ErrorIs(t, err, integration.ErrValidation)
}
