package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// setupSQLiteDB opens an in-memory database with every sync table migrated.
// A single connection keeps the in-memory schema visible to all queries.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.ProductMappingModel{},
		&models.InventoryTransactionModel{},
		&models.SyncJobModel{},
		&models.SyncLogModel{},
		&models.ExchangeRateModel{},
		&models.OrderAcknowledgmentModel{},
	))
	return db
}
