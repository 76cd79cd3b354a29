package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wplc/livechat/internal/modules/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database with all chat tables.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every pooled connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Session{},
		&model.Message{},
		&model.File{},
		&model.Operator{},
		&model.FlowStateRow{},
	))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
