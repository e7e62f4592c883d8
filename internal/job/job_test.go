package job

import (
	"path/filepath"
	"testing"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/infrastructure/database"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "job.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	return cfg
}

func fakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(epoch)
}
