// Package backup 存档最近一次成功拉取的快照原文，供重启后的热启动使用。
//
// SQLite 是权威存储；配置了Redis时，Redis作为热存档优先被读取。
// 引擎本身不保留任何快照历史，存档只有一份。
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/platform/database"
	"github.com/SlpAus/ricebowl-portal/internal/platform/metadata"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoArchive 表示还没有任何存档
var ErrNoArchive = errors.New("没有快照存档")

const lastGoodName = "last-good"

// SnapshotArchive 是存档表的结构，只有一行
type SnapshotArchive struct {
	Name      string `gorm:"primaryKey;type:varchar(64)"`
	Payload   []byte `gorm:"not null"`
	Checksum  string `gorm:"type:varchar(64);not null"`
	FetchedAt time.Time
	UpdatedAt time.Time
}

// Entry 是一份存档
type Entry struct {
	Payload   []byte
	FetchedAt time.Time
	Source    string
}

// Archive 读写最近一次成功的快照
type Archive struct {
	mu    sync.Mutex
	db    *gorm.DB
	rdb   redis.Cmdable
	ttl   time.Duration
	avail func() bool
	log   zerolog.Logger
}

type Option func(*Archive)

// WithRedis 启用Redis热存档。available 为 nil 时总是尝试访问Redis。
func WithRedis(rdb redis.Cmdable, ttl time.Duration, available func() bool) Option {
	return func(a *Archive) {
		a.rdb = rdb
		a.ttl = ttl
		a.avail = available
	}
}

// New 创建存档
func New(db *gorm.DB, logger zerolog.Logger, opts ...Option) *Archive {
	a := &Archive{
		db:  db,
		log: logger.With().Str("component", "backup").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Migrate 迁移存档相关的表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SnapshotArchive{}); err != nil {
		return fmt.Errorf("无法迁移snapshot_archives表: %w", err)
	}
	return metadata.Migrate(db)
}

func (a *Archive) redisEnabled() bool {
	if a.rdb == nil {
		return false
	}
	return a.avail == nil || a.avail()
}

// Save 存档一份快照原文。内容与上一份相同时只更新拉取时间。
func (a *Archive) Save(ctx context.Context, payload []byte, fetchedAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	if a.redisEnabled() {
		if err := a.saveRedis(ctx, payload, fetchedAt); err != nil {
			// Redis只是热存档，失败不影响SQLite
			a.log.Warn().Err(err).Msg("写入Redis热存档失败")
		}
	}

	const maxRetry = 3
	const delay = 50 * time.Millisecond
	var err error
	for i := 0; i < maxRetry; i++ {
		err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return a.saveSQLite(tx, payload, checksum, fetchedAt)
		})
		if err == nil || !database.IsRetryableError(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return fmt.Errorf("存档快照失败: %w", err)
	}
	return nil
}

func (a *Archive) saveSQLite(tx *gorm.DB, payload []byte, checksum string, fetchedAt time.Time) error {
	previous, err := metadata.GetLastSnapshotChecksum(tx)
	if err != nil {
		return fmt.Errorf("读取存档校验和失败: %w", err)
	}

	if previous != checksum {
		row := SnapshotArchive{
			Name:      lastGoodName,
			Payload:   payload,
			Checksum:  checksum,
			FetchedAt: fetchedAt.UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "checksum", "fetched_at", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("写入存档失败: %w", err)
		}
		if err := metadata.SetLastSnapshotChecksum(tx, checksum); err != nil {
			return fmt.Errorf("更新元数据 LastSnapshotChecksum 失败: %w", err)
		}
	} else {
		err := tx.Model(&SnapshotArchive{}).
			Where("name = ?", lastGoodName).
			Update("fetched_at", fetchedAt.UTC()).Error
		if err != nil {
			return fmt.Errorf("更新存档时间失败: %w", err)
		}
	}

	if err := metadata.SetLastSnapshotFetchedAt(tx, fetchedAt); err != nil {
		return fmt.Errorf("更新元数据 LastSnapshotFetchedAt 失败: %w", err)
	}
	return nil
}

func (a *Archive) saveRedis(ctx context.Context, payload []byte, fetchedAt time.Time) error {
	pipe := a.rdb.TxPipeline()
	pipe.Set(ctx, metadata.RedisSnapshotKey, payload, a.ttl)
	pipe.Set(ctx, metadata.RedisSnapshotFetchedAtKey, fetchedAt.UTC().Format(time.RFC3339Nano), a.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Load 读取存档，优先使用Redis热存档。没有存档时返回 ErrNoArchive。
func (a *Archive) Load(ctx context.Context) (*Entry, error) {
	if a.redisEnabled() {
		entry, err := a.loadRedis(ctx)
		switch {
		case err == nil:
			return entry, nil
		case errors.Is(err, redis.Nil):
		default:
			a.log.Warn().Err(err).Msg("读取Redis热存档失败，回退到SQLite")
		}
	}
	return a.loadSQLite(ctx)
}

func (a *Archive) loadRedis(ctx context.Context) (*Entry, error) {
	pipe := a.rdb.Pipeline()
	payloadCmd := pipe.Get(ctx, metadata.RedisSnapshotKey)
	fetchedAtCmd := pipe.Get(ctx, metadata.RedisSnapshotFetchedAtKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	payload, err := payloadCmd.Bytes()
	if err != nil {
		return nil, err
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, fetchedAtCmd.Val())
	if err != nil {
		return nil, fmt.Errorf("无法解析Redis存档时间: %w", err)
	}
	return &Entry{Payload: payload, FetchedAt: fetchedAt, Source: "redis"}, nil
}

func (a *Archive) loadSQLite(ctx context.Context) (*Entry, error) {
	var row SnapshotArchive
	err := a.db.WithContext(ctx).Where("name = ?", lastGoodName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoArchive
	}
	if err != nil {
		return nil, fmt.Errorf("读取存档失败: %w", err)
	}
	return &Entry{Payload: row.Payload, FetchedAt: row.FetchedAt, Source: "sqlite"}, nil
}

// RebuildCache 把SQLite中的存档重新写入Redis，在Redis重启或恢复后由健康检查器调用。
func (a *Archive) RebuildCache(ctx context.Context) error {
	if a.rdb == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, err := a.loadSQLite(ctx)
	if errors.Is(err, ErrNoArchive) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.saveRedis(ctx, entry.Payload, entry.FetchedAt); err != nil {
		return fmt.Errorf("重建Redis热存档失败: %w", err)
	}
	a.log.Info().Time("fetchedAt", entry.FetchedAt).Msg("Redis热存档已重建")
	return nil
}
