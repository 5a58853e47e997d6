package startup

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/ricebowl-portal/internal/platform/backup"
	"github.com/SlpAus/ricebowl-portal/internal/platform/config"
	"github.com/SlpAus/ricebowl-portal/internal/reconcile"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Loader 读取最近一次成功快照的存档
type Loader interface {
	Load(ctx context.Context) (*backup.Entry, error)
}

// Restorer 用存档原文渲染视图
type Restorer interface {
	Restore(ctx context.Context, payload []byte) (reconcile.Report, error)
}

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication(db *gorm.DB, logger zerolog.Logger) error {
	logger.Info().Msg("开始应用初始化...")
	if err := backup.Migrate(db); err != nil {
		return fmt.Errorf("迁移存档表失败: %w", err)
	}
	logger.Info().Msg("应用初始化完成")
	return nil
}

// ReconcileOptions 把展示相关的配置转换为对账参数
func ReconcileOptions(cfg config.CampaignConfig) (reconcile.Options, error) {
	opts := reconcile.DefaultOptions()
	if cfg.DefaultTheme != "" {
		opts.DefaultTheme = cfg.DefaultTheme
	}
	revealAt, err := cfg.RevealAt()
	if err != nil {
		return opts, err
	}
	scaleMax, err := cfg.ScaleMax()
	if err != nil {
		return opts, err
	}
	minFill, err := cfg.MinFill()
	if err != nil {
		return opts, err
	}
	opts.RevealAt = revealAt
	opts.ScaleMax = scaleMax
	opts.MinFill = minFill
	if cfg.CountdownTick > 0 {
		opts.CountdownTick = cfg.CountdownTick
	}
	opts.MultiOpen = cfg.MultiOpenPastWeeks
	return opts, nil
}

// WarmStart 在第一次拉取之前用存档渲染视图。
// 没有存档或存档损坏都不是致命错误，引擎会等待第一次拉取。
func WarmStart(ctx context.Context, loader Loader, restorer Restorer, logger zerolog.Logger) bool {
	if loader == nil {
		return false
	}
	entry, err := loader.Load(ctx)
	if errors.Is(err, backup.ErrNoArchive) {
		logger.Info().Msg("没有快照存档，等待首次拉取")
		return false
	}
	if err != nil {
		logger.Warn().Err(err).Msg("读取快照存档失败，跳过热启动")
		return false
	}

	report, err := restorer.Restore(ctx, entry.Payload)
	if err != nil {
		logger.Warn().Err(err).Str("source", entry.Source).Msg("快照存档无法使用，跳过热启动")
		return false
	}
	logger.Info().
		Str("source", entry.Source).
		Time("fetchedAt", entry.FetchedAt).
		Int("week", report.CurrentWeek).
		Int("diagnostics", len(report.Diagnostics)).
		Msg("已从存档热启动")
	return true
}
