// Package engine 把事件循环、Reconciler 和刷新调度器组装在一起。
//
// 引擎的全部状态只在事件循环上被修改；HTTP 处理器和终端界面通过 Loop.Call 投递闭包与它交互，
// 并从 view.Document 读取已提交的视图。
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/fetch"
	"github.com/SlpAus/ricebowl-portal/internal/platform/health"
	"github.com/SlpAus/ricebowl-portal/internal/platform/metrics"
	"github.com/SlpAus/ricebowl-portal/internal/reconcile"
	"github.com/SlpAus/ricebowl-portal/internal/refresh"
	"github.com/SlpAus/ricebowl-portal/internal/schedule"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// Config 描述引擎的依赖
type Config struct {
	Options         reconcile.Options
	RefreshInterval time.Duration
	Fetcher         fetch.Fetcher
	Archive         refresh.Archive
	Metrics         *metrics.Registry
	Health          *health.Status
}

// Engine 是快照到视图的对账引擎
type Engine struct {
	loop       *schedule.Loop
	doc        *view.Document
	reconciler *reconcile.Reconciler
	refresher  *refresh.Scheduler
	fetcher    fetch.Fetcher
	log        zerolog.Logger
}

// New 组装引擎，此时还没有任何goroutine在运行。
func New(cfg Config, logger zerolog.Logger) *Engine {
	loop := schedule.NewLoop(logger)
	doc := view.NewDocument()

	recOpts := []reconcile.Option{reconcile.WithLogger(logger)}
	refreshOpts := []refresh.Option{
		refresh.WithLogger(logger),
		refresh.WithInterval(cfg.RefreshInterval),
	}
	if cfg.Metrics != nil {
		recOpts = append(recOpts, reconcile.WithHooks(cfg.Metrics))
		refreshOpts = append(refreshOpts, refresh.WithMetrics(cfg.Metrics))
	}
	if cfg.Health != nil {
		refreshOpts = append(refreshOpts, refresh.WithHealth(cfg.Health))
	}
	if cfg.Archive != nil {
		refreshOpts = append(refreshOpts, refresh.WithArchive(cfg.Archive))
	}

	r := reconcile.New(loop, doc, cfg.Options, recOpts...)
	return &Engine{
		loop:       loop,
		doc:        doc,
		reconciler: r,
		refresher:  refresh.New(loop, cfg.Fetcher, r, refreshOpts...),
		fetcher:    cfg.Fetcher,
		log:        logger.With().Str("component", "engine").Logger(),
	}
}

// Run 在生命周期管理器中启动事件循环
func (e *Engine) Run(manager *lifecycle.Manager) error {
	return manager.Go("engine-loop", e.loop.Run)
}

// StartRefresh 启动周期刷新，首次拉取立即开始。
func (e *Engine) StartRefresh(ctx context.Context) error {
	return e.loop.Call(ctx, e.refresher.Start)
}

// Document 返回引擎提交的视图文档
func (e *Engine) Document() *view.Document {
	return e.doc
}

// Restore 用存档的快照原文渲染视图，用于重启后的热启动。
func (e *Engine) Restore(ctx context.Context, payload []byte) (reconcile.Report, error) {
	snap, err := campaign.Decode(payload)
	if err != nil {
		return reconcile.Report{}, fmt.Errorf("存档的快照无法解码: %w", err)
	}
	return e.apply(ctx, snap)
}

// RunOnce 同步拉取一次快照并提交，不经过刷新调度器。
func (e *Engine) RunOnce(ctx context.Context) (reconcile.Report, error) {
	res, err := e.fetcher.Fetch(ctx)
	if err != nil {
		return reconcile.Report{}, err
	}
	return e.apply(ctx, res.Snapshot)
}

func (e *Engine) apply(ctx context.Context, snap *campaign.Snapshot) (reconcile.Report, error) {
	var report reconcile.Report
	err := e.loop.Call(ctx, func() {
		report = e.reconciler.Reconcile(snap)
	})
	return report, err
}

// ToggleWeek 展开或折叠一个往期条目
func (e *Engine) ToggleWeek(ctx context.Context, week int) (bool, error) {
	var (
		open   bool
		toggle error
	)
	if err := e.loop.Call(ctx, func() {
		open, toggle = e.reconciler.ToggleWeek(week)
	}); err != nil {
		return false, err
	}
	return open, toggle
}

// Refresh 手动触发一次刷新，拉取进行中时返回 false。
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	var started bool
	err := e.loop.Call(ctx, func() {
		started = e.refresher.TriggerNow()
	})
	return started, err
}

// Report 返回最近一次对账的报告
func (e *Engine) Report(ctx context.Context) (reconcile.Report, error) {
	var report reconcile.Report
	err := e.loop.Call(ctx, func() {
		report = e.reconciler.LastReport()
	})
	return report, err
}

// Teardown 停止刷新与倒计时，并等待进行中的拉取退出。
// 事件循环本身由生命周期管理器停止。
func (e *Engine) Teardown(ctx context.Context) error {
	err := e.loop.Call(ctx, func() {
		e.refresher.Stop()
		e.reconciler.Teardown()
	})
	if err != nil {
		return fmt.Errorf("拆除引擎失败: %w", err)
	}

	done := make(chan struct{})
	go func() {
		e.refresher.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.log.Info().Msg("引擎已拆除")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
