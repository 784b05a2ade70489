package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{ServiceName: "storelink"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestServiceSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "inventory", "adjust")
	SetAttributes(span, SpanAttrSKU, "ALBUM-001", SpanAttrQuantity, 3, 42, "ignored")
	RecordError(span, errors.New("shopify down"))
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "inventory.adjust", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 2)
}

func TestClientSpan(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartClientSpan(context.Background(), "SHOPIFY", "set_stock")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestDBTracingPlugin(t *testing.T) {
	recorder := installRecorder(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	core, logs := observer.New(zap.WarnLevel)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, zap.New(core))
	require.NoError(t, plugin.Register(db))

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRow{Name: "a"}).Error)

	assert.NotEmpty(t, recorder.Ended())
	slow := logs.FilterMessage("Slow query").All()
	require.NotEmpty(t, slow)
	assert.Equal(t, "traced_rows", slow[0].ContextMap()["table"])
}

func TestDBTracingPlugin_DisabledStillRegisters(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	plugin := NewDBTracingPlugin(DBTracingConfig{}, zaptest.NewLogger(t))
	require.NoError(t, plugin.Register(db))
	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
}
