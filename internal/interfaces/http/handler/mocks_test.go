package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/storage"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

// MockJobScheduler implements JobScheduler for testing
type MockJobScheduler struct {
	mock.Mock
}

func (m *MockJobScheduler) job(args mock.Arguments) (*integration.SyncJob, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncJob), args.Error(1)
}

func (m *MockJobScheduler) TriggerFullSync(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	return m.job(m.Called(ctx, trigger))
}

func (m *MockJobScheduler) TriggerSKUSync(ctx context.Context, sku string, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	return m.job(m.Called(ctx, sku, trigger))
}

func (m *MockJobScheduler) TriggerPriceSync(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	return m.job(m.Called(ctx, trigger))
}

func (m *MockJobScheduler) TriggerOrderIngestion(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	return m.job(m.Called(ctx, trigger))
}

func (m *MockJobScheduler) Cancel(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error) {
	return m.job(m.Called(ctx, id))
}

func (m *MockJobScheduler) JobStatus(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error) {
	return m.job(m.Called(ctx, id))
}

func (m *MockJobScheduler) RecentJobs(ctx context.Context, jobType integration.JobType, limit int) ([]integration.SyncJob, error) {
	args := m.Called(ctx, jobType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncJob), args.Error(1)
}

// MockMappingService implements MappingService for testing
type MockMappingService struct {
	mock.Mock
}

func (m *MockMappingService) mapping(args mock.Arguments) (*integration.ProductMapping, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockMappingService) CreateMapping(ctx context.Context, req appintegration.CreateMappingRequest) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, req))
}

func (m *MockMappingService) GetMapping(ctx context.Context, sku string) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, sku))
}

func (m *MockMappingService) ListMappings(ctx context.Context, filter appintegration.MappingFilter) ([]integration.ProductMapping, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.ProductMapping), args.Get(1).(int64), args.Error(2)
}

func (m *MockMappingService) UpdatePolicies(ctx context.Context, sku string, req appintegration.UpdatePoliciesRequest) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, sku, req))
}

func (m *MockMappingService) DeleteMapping(ctx context.Context, sku string) error {
	return m.Called(ctx, sku).Error(0)
}

func (m *MockMappingService) DiscoverMapping(ctx context.Context, sku string) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, sku))
}

// MockInventoryService implements InventoryService for testing
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) Adjust(ctx context.Context, cmd appintegration.AdjustCommand) (*appintegration.AdjustResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.AdjustResult), args.Error(1)
}

func (m *MockInventoryService) TransactionHistory(ctx context.Context, sku string, page, pageSize int) ([]integration.InventoryTransaction, int64, error) {
	args := m.Called(ctx, sku, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.InventoryTransaction), args.Get(1).(int64), args.Error(2)
}

// MockRateService implements RateService for testing
type MockRateService struct {
	mock.Mock
}

func (m *MockRateService) Current(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	args := m.Called(ctx, base, quote)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRateService) Refresh(ctx context.Context) ([]integration.ExchangeRate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ExchangeRate), args.Error(1)
}

// MockArchiveBrowser implements ArchiveBrowser for testing
type MockArchiveBrowser struct {
	mock.Mock
}

func (m *MockArchiveBrowser) List(ctx context.Context, prefix string, limit int) ([]storage.ArchiveObject, error) {
	args := m.Called(ctx, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ArchiveObject), args.Error(1)
}

func (m *MockArchiveBrowser) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

// newTestRouter mounts one registrar under /api/v1 like the server does
func newTestRouter(registrar router.RouteRegistrar) *gin.Engine {
	engine := gin.New()
	router.NewRouter(engine).Register(registrar).Setup()
	return engine
}

func doRequest(t *testing.T, engine http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data field of a response into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
