package database

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"order-ingestion-service/internal/models"
)

func TestMigrateAndPing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:database_migrate?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Ping(context.Background(), db))

	assert.True(t, db.Migrator().HasTable(&models.Order{}))
	assert.True(t, db.Migrator().HasTable(&models.ImportRun{}))
	assert.True(t, db.Migrator().HasIndex(&models.Order{}, "idx_orders_order_item_id"))
}
