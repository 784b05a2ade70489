package integration

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storelink/backend/internal/domain/integration"
)

// memoryMappings is an in-memory ProductMappingRepository
type memoryMappings struct {
	mu    sync.Mutex
	items map[string]*integration.ProductMapping
	saves int
}

func newMemoryMappings(mappings ...*integration.ProductMapping) *memoryMappings {
	m := &memoryMappings{items: make(map[string]*integration.ProductMapping)}
	for _, mapping := range mappings {
		m.items[mapping.SKU] = cloneMapping(mapping)
	}
	return m
}

func cloneMapping(m *integration.ProductMapping) *integration.ProductMapping {
	c := *m
	c.Listings = maps.Clone(m.Listings)
	c.SyncState = maps.Clone(m.SyncState)
	return &c
}

func (m *memoryMappings) FindBySKU(_ context.Context, sku string) (*integration.ProductMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.items[sku]
	if !ok || mapping.IsDeleted() {
		return nil, integration.ErrMappingNotFound
	}
	return cloneMapping(mapping), nil
}

func (m *memoryMappings) FindActive(_ context.Context) ([]integration.ProductMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.ProductMapping
	for _, sku := range slices.Sorted(maps.Keys(m.items)) {
		if mapping := m.items[sku]; mapping.IsSyncable() {
			out = append(out, *cloneMapping(mapping))
		}
	}
	return out, nil
}

func (m *memoryMappings) List(_ context.Context, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.ProductMapping
	for _, sku := range slices.Sorted(maps.Keys(m.items)) {
		mapping := m.items[sku]
		if mapping.IsDeleted() {
			continue
		}
		if filter.Status != "" && mapping.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(mapping.SKU, strings.ToUpper(filter.Search)) {
			continue
		}
		out = append(out, *cloneMapping(mapping))
	}
	return out, int64(len(out)), nil
}

func (m *memoryMappings) ExistsBySKU(_ context.Context, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.items[sku]
	return ok && !mapping.IsDeleted(), nil
}

func (m *memoryMappings) Save(_ context.Context, mapping *integration.ProductMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[mapping.SKU] = cloneMapping(mapping)
	m.saves++
	return nil
}

func (m *memoryMappings) SoftDelete(_ context.Context, sku string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.items[sku]
	if !ok {
		return integration.ErrMappingNotFound
	}
	mapping.SoftDelete(time.Now())
	return nil
}

func (m *memoryMappings) get(t *testing.T, sku string) *integration.ProductMapping {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.items[sku]
	require.True(t, ok, "mapping %s not stored", sku)
	return cloneMapping(mapping)
}

// memoryTransactions is an in-memory InventoryTransactionRepository
type memoryTransactions struct {
	mu  sync.Mutex
	txs []integration.InventoryTransaction
}

func (m *memoryTransactions) Append(_ context.Context, tx *integration.InventoryTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memoryTransactions) ListBySKU(_ context.Context, sku string, page, pageSize int) ([]integration.InventoryTransaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.InventoryTransaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].SKU == sku {
			out = append(out, m.txs[i])
		}
	}
	total := int64(len(out))
	start := min((page-1)*pageSize, len(out))
	end := min(start+pageSize, len(out))
	return out[start:end], total, nil
}

func (m *memoryTransactions) all() []integration.InventoryTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.txs)
}

func (m *memoryTransactions) byOutcome(outcome integration.TransactionOutcome) []integration.InventoryTransaction {
	var out []integration.InventoryTransaction
	for _, tx := range m.all() {
		if tx.Outcome == outcome {
			out = append(out, tx)
		}
	}
	return out
}

// fakePlatform keeps one stock level and one price per platform
type fakePlatform struct {
	mu       sync.Mutex
	code     integration.PlatformCode
	stock    map[string]int
	price    decimal.Decimal
	getErr   error
	setErr   error
	delay    time.Duration
	found    *integration.PlatformRef
	findErr  error
	setCalls int
	prices   []decimal.Decimal

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakePlatform(code integration.PlatformCode, stock map[string]int) *fakePlatform {
	if stock == nil {
		stock = make(map[string]int)
	}
	return &fakePlatform{code: code, stock: stock}
}

func (f *fakePlatform) Code() integration.PlatformCode { return f.code }

func (f *fakePlatform) GetStock(ctx context.Context, ref integration.PlatformRef) (int, error) {
	n := f.active.Add(1)
	for {
		current := f.maxActive.Load()
		if n <= current || f.maxActive.CompareAndSwap(current, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		f.active.Add(-1)
		return 0, f.getErr
	}
	return f.stock[ref.ProductID], nil
}

func (f *fakePlatform) SetStock(_ context.Context, ref integration.PlatformRef, quantity int) error {
	defer f.active.Add(-1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls++
	f.stock[ref.ProductID] = quantity
	return nil
}

func (f *fakePlatform) GetPrice(context.Context, integration.PlatformRef) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return decimal.Zero, f.getErr
	}
	return f.price, nil
}

func (f *fakePlatform) SetPrice(_ context.Context, _ integration.PlatformRef, price decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.price = price
	f.prices = append(f.prices, price)
	return nil
}

func (f *fakePlatform) FindBySKU(context.Context, string) (*integration.PlatformRef, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.found == nil {
		return nil, integration.ErrMappingNotFound
	}
	ref := *f.found
	return &ref, nil
}

func (f *fakePlatform) quantity(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

// MockOrderSource is a mock implementation of integration.OrderSource
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) ListOrders(ctx context.Context, query integration.OrderQuery) (*integration.OrderPage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderPage), args.Error(1)
}

func (m *MockOrderSource) ConfirmOrders(ctx context.Context, lineIDs []string) error {
	args := m.Called(ctx, lineIDs)
	return args.Error(0)
}

// memoryAcks is an in-memory shared.IdempotencyStore
type memoryAcks struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func newMemoryAcks() *memoryAcks {
	return &memoryAcks{keys: make(map[string]time.Duration)}
}

func (m *memoryAcks) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[id]; ok {
		return false, nil
	}
	m.keys[id] = ttl
	return true, nil
}

func (m *memoryAcks) IsProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[id]
	return ok, nil
}

func (m *memoryAcks) Close() error { return nil }

func (m *memoryAcks) has(id string) bool {
	ok, _ := m.IsProcessed(context.Background(), id)
	return ok
}

// fixture wires a reconciler over in-memory collaborators
type fixture struct {
	mappings   *memoryMappings
	txs        *memoryTransactions
	smartstore *fakePlatform
	shopify    *fakePlatform
	reconciler *InventoryReconciler
	now        time.Time
}

func newFixture(t *testing.T, mappings ...*integration.ProductMapping) *fixture {
	t.Helper()
	f := &fixture{
		mappings:   newMemoryMappings(mappings...),
		txs:        &memoryTransactions{},
		smartstore: newFakePlatform(integration.PlatformSmartStore, nil),
		shopify:    newFakePlatform(integration.PlatformShopify, nil),
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.reconciler = NewInventoryReconciler(
		f.mappings,
		f.txs,
		integration.NewPlatformRegistry(f.smartstore, f.shopify),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

// linkedMapping returns an active mapping whose SmartStore and Shopify refs both use productID
func linkedMapping(t *testing.T, sku, productID string) *integration.ProductMapping {
	t.Helper()
	mapping, err := integration.NewProductMapping(sku, sku)
	require.NoError(t, err)
	require.NoError(t, mapping.SetRef(integration.PlatformSmartStore, integration.PlatformRef{ProductID: productID, VariantID: productID}))
	require.NoError(t, mapping.SetRef(integration.PlatformShopify, integration.PlatformRef{
		ProductID: productID, VariantID: productID, InventoryID: productID, LocationID: "loc-1",
	}))
	require.NoError(t, mapping.Activate())
	return mapping
}
