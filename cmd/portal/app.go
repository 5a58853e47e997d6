package main

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/engine"
	"github.com/SlpAus/ricebowl-portal/internal/fetch"
	"github.com/SlpAus/ricebowl-portal/internal/platform/backup"
	"github.com/SlpAus/ricebowl-portal/internal/platform/config"
	"github.com/SlpAus/ricebowl-portal/internal/platform/database"
	"github.com/SlpAus/ricebowl-portal/internal/platform/health"
	"github.com/SlpAus/ricebowl-portal/internal/platform/metrics"
	"github.com/SlpAus/ricebowl-portal/internal/platform/shutdown"
	"github.com/SlpAus/ricebowl-portal/internal/platform/startup"
	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// app 是三个子命令共用的运行时组件
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	engine  *engine.Engine
	fetcher *fetch.HTTPFetcher
	status  *health.Status
	metrics *metrics.Registry
	archive *backup.Archive
	manager *lifecycle.Manager

	db  *gorm.DB
	rdb *redis.Client
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, nil
}

// newApp 组装引擎及其存储与观测依赖，并启动事件循环。
// withArchive 为 false 时不打开任何存储。
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withArchive bool) (*app, error) {
	opts, err := startup.ReconcileOptions(cfg.Campaign)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     logger,
		metrics: metrics.New(),
		manager: lifecycle.NewManager(logger),
	}
	a.status = health.NewStatus(logger, withArchive && cfg.Database.Redis.Address != "")
	a.fetcher = fetch.NewHTTPFetcher(fetch.Config{
		URL:             cfg.Source.URL,
		Timeout:         cfg.Source.Timeout,
		BreakerFailures: cfg.Source.BreakerFailures,
		BreakerCooldown: cfg.Source.BreakerCooldown,
	}, logger)

	if withArchive && cfg.Database.Archive.Enabled {
		if err := a.openArchive(ctx); err != nil {
			a.closeStores()
			return nil, err
		}
	}

	engineCfg := engine.Config{
		Options:         opts,
		RefreshInterval: cfg.Source.RefreshInterval,
		Fetcher:         a.fetcher,
		Metrics:         a.metrics,
		Health:          a.status,
	}
	if a.archive != nil {
		engineCfg.Archive = a.archive
	}
	a.engine = engine.New(engineCfg, logger)
	if err := a.engine.Run(a.manager); err != nil {
		a.closeStores()
		return nil, err
	}
	return a, nil
}

func (a *app) openArchive(ctx context.Context) error {
	db, err := database.OpenSQLite(a.cfg.Database.Sqlite)
	if err != nil {
		return err
	}
	a.db = db
	if err := startup.InitializeApplication(db, a.log); err != nil {
		return err
	}

	var opts []backup.Option
	rdb, err := database.OpenRedis(ctx, a.cfg.Database.Redis)
	if err != nil {
		a.log.Warn().Err(err).Msg("Redis暂不可用，先只使用SQLite存档")
	}
	if rdb != nil {
		a.rdb = rdb
		opts = append(opts, backup.WithRedis(rdb, a.cfg.Database.Redis.SnapshotTTL, a.status.RedisAvailable))
	}
	a.archive = backup.New(db, a.log, opts...)

	if rdb != nil {
		checker := health.NewChecker(rdb, a.status, a.archive.RebuildCache, a.log)
		checker.InitializeRunID(ctx)
		checker.PerformCheck(ctx)
		if err := a.manager.Go("redis-health", checker.Run); err != nil {
			return err
		}
	}
	return nil
}

// warmStart 用存档渲染第一帧
func (a *app) warmStart(ctx context.Context) {
	if a.archive == nil {
		return
	}
	startup.WarmStart(ctx, a.archive, a.engine, a.log)
}

// coordinator 返回停机协调器，引擎在后台服务之前拆除，存储最后关闭。
func (a *app) coordinator() *shutdown.Coordinator {
	c := shutdown.NewCoordinator(a.manager, a.log)
	c.BeforeServices = []shutdown.Step{{Name: "engine", Fn: a.engine.Teardown}}
	c.Finally = []shutdown.Step{{Name: "stores", Fn: func(context.Context) error {
		a.closeStores()
		return nil
	}}}
	return c
}

// stop 不经过信号直接停机，供一次性子命令使用。
func (a *app) stop() {
	c := a.coordinator()
	c.GracefulTimeout = 5 * time.Second
	c.Shutdown(nil)
}

func (a *app) closeStores() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("关闭Redis连接失败")
		}
		a.rdb = nil
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.log.Warn().Err(err).Msg("关闭数据库失败")
		}
		a.db = nil
	}
}

