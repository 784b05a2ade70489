//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/migration"
	"github.com/storelink/backend/migrations"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// startPostgres runs one container for the package and applies the
// embedded migrations to it.
func startPostgres(t *testing.T) string {
	t.Helper()
	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("storelink_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("admin123"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgDSN, pgErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, pgErr, "Failed to start PostgreSQL container")
	return pgDSN
}

// newPostgresDB opens a migrated database and truncates every sync table
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := startPostgres(t)

	db, err := Open(gormpostgres.Open(dsn), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migration.FromFS(migrations.FS), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	require.NoError(t, db.DB.Exec(`TRUNCATE product_mappings, inventory_transactions, sync_jobs,
		sync_logs, exchange_rates, order_acknowledgments`).Error)
	return db.DB
}

func TestPostgres_ProductMappingUniqueness(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormProductMappingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newLinkedMapping(t, "ALBUM-001")))

	err := repo.Save(ctx, newLinkedMapping(t, "ALBUM-001"))
	assert.ErrorIs(t, err, integration.ErrMappingAlreadyExists)

	require.NoError(t, repo.SoftDelete(ctx, "ALBUM-001"))
	require.NoError(t, repo.Save(ctx, newLinkedMapping(t, "ALBUM-001")))

	mappings, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	ref, err := mappings[0].Ref(integration.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", ref.InventoryID)
}

func TestPostgres_InventoryTransactionsAreAppendOnly(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	tx := integration.NewSuccessfulTransaction(integration.TransactionInput{
		SKU:        "ALBUM-001",
		Platform:   integration.PlatformSmartStore,
		AdjustType: integration.AdjustAdd,
		Delta:      2,
		Actor:      integration.ActorManual,
		At:         time.Now(),
	}, 3, 5)
	require.NoError(t, repo.Append(ctx, tx))

	err := db.Exec("UPDATE inventory_transactions SET delta = 9").Error
	assert.ErrorContains(t, err, "append-only")
	err = db.Exec("DELETE FROM inventory_transactions").Error
	assert.ErrorContains(t, err, "append-only")

	txs, total, err := repo.ListBySKU(ctx, "ALBUM-001", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 2, txs[0].Delta)
}

func TestPostgres_AcknowledgmentStore(t *testing.T) {
	store := NewGormAcknowledgmentStore(newPostgresDB(t))
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "order:1001", time.Hour)
	require.NoError(t, err)
	second, err := store.MarkProcessed(ctx, "order:1001", time.Hour)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestPostgres_SyncLogRetentionQuery(t *testing.T) {
	repo := NewGormSyncLogRepository(newPostgresDB(t))
	ctx := context.Background()

	old := integration.NewSyncLog("cron.order_sync", integration.SeverityInfo, "run", map[string]any{"orders": 2})
	old.CreatedAt = time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, repo.Append(ctx, old))
	kept := integration.NewSyncLog("cron.order_sync", integration.SeverityError, "boom", nil)
	kept.CreatedAt = old.CreatedAt
	require.NoError(t, repo.Append(ctx, kept))

	entries, err := repo.FindLowSeverityBefore(ctx, time.Now().Add(-30*24*time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, old.ID, entries[0].ID)
}
