package metadata

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetValue 读取一个元数据值，键不存在时返回空字符串。
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue 以 upsert 的方式写入一个元数据值。
func SetValue(db *gorm.DB, key, value string) error {
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// GetLastSnapshotFetchedAt 读取并解析最近一次存档的拉取时间，不存在时返回零值。
func GetLastSnapshotFetchedAt(db *gorm.DB) (time.Time, error) {
	valueStr, err := GetValue(db, LastSnapshotFetchedAtKey)
	if err != nil {
		return time.Time{}, err
	}
	if valueStr == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastSnapshotFetchedAtKey, err)
	}
	return t, nil
}

// SetLastSnapshotFetchedAt 写入最近一次存档的拉取时间
func SetLastSnapshotFetchedAt(db *gorm.DB, t time.Time) error {
	return SetValue(db, LastSnapshotFetchedAtKey, t.UTC().Format(time.RFC3339Nano))
}

// GetLastSnapshotChecksum 读取最近一次存档的校验和
func GetLastSnapshotChecksum(db *gorm.DB) (string, error) {
	return GetValue(db, LastSnapshotChecksumKey)
}

// SetLastSnapshotChecksum 写入最近一次存档的校验和
func SetLastSnapshotChecksum(db *gorm.DB, checksum string) error {
	return SetValue(db, LastSnapshotChecksumKey, checksum)
}
