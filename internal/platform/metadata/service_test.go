package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestValueUpsert(t *testing.T) {
	db := openDB(t)

	v, err := GetValue(db, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetValue(db, "k", "1"))
	require.NoError(t, SetValue(db, "k", "2"))
	v, err = GetValue(db, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	var count int64
	require.NoError(t, db.Model(&Metadata{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFetchedAtRoundTrip(t *testing.T) {
	db := openDB(t)

	zero, err := GetLastSnapshotFetchedAt(db)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	at := time.Date(2026, 3, 11, 15, 4, 5, 123, time.UTC)
	require.NoError(t, SetLastSnapshotFetchedAt(db, at))
	got, err := GetLastSnapshotFetchedAt(db)
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	require.NoError(t, SetValue(db, LastSnapshotFetchedAtKey, "yesterday"))
	_, err = GetLastSnapshotFetchedAt(db)
	assert.Error(t, err)
}
