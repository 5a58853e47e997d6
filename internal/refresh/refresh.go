// Package refresh 周期性地拉取快照并交给 Reconciler。
//
// 重叠策略是 skip-if-busy：拉取进行中时到来的触发会被跳过并计数。
// 拉取在独立的goroutine中进行，结果被投递回事件循环处理，倒计时在此期间照常运行。
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/fetch"
	"github.com/SlpAus/ricebowl-portal/internal/reconcile"
	"github.com/SlpAus/ricebowl-portal/internal/schedule"
	"github.com/rs/zerolog"
)

// DefaultInterval 是默认的刷新间隔
const DefaultInterval = 5 * time.Minute

// Target 接收拉取结果
type Target interface {
	Reconcile(snap *campaign.Snapshot) reconcile.Report
	ShowTransportError(err error)
}

// Metrics 记录拉取结果
type Metrics interface {
	ObserveFetch(result string, elapsed time.Duration)
	ObserveSkippedRefresh()
}

// Health 跟踪快照源的健康状态
type Health interface {
	RecordFetch(err error, at time.Time)
}

// Archive 保存最近一次成功的快照原文
type Archive interface {
	Save(ctx context.Context, payload []byte, fetchedAt time.Time) error
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = logger.With().Str("component", "refresh").Logger()
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithHealth(h Health) Option {
	return func(s *Scheduler) { s.health = h }
}

func WithArchive(a Archive) Option {
	return func(s *Scheduler) { s.archive = a }
}

// Scheduler 驱动周期性刷新。除 Wait 外，方法都必须在事件循环上调用。
type Scheduler struct {
	sched    schedule.Scheduler
	fetcher  fetch.Fetcher
	target   Target
	interval time.Duration
	log      zerolog.Logger
	metrics  Metrics
	health   Health
	archive  Archive

	task     schedule.Task
	busy     bool
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	inflight sync.WaitGroup

	base       context.Context
	baseCancel context.CancelFunc
}

// New 创建刷新调度器
func New(sched schedule.Scheduler, fetcher fetch.Fetcher, target Target, opts ...Option) *Scheduler {
	base, baseCancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sched:      sched,
		fetcher:    fetcher,
		target:     target,
		interval:   DefaultInterval,
		log:        zerolog.Nop(),
		base:       base,
		baseCancel: baseCancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 立即拉取一次，然后按间隔重复。重复调用无效。
func (s *Scheduler) Start() {
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.task = s.sched.Every(s.interval, func() { s.trigger("interval") })
	s.log.Info().Dur("interval", s.interval).Msg("刷新调度器已启动")
	s.trigger("startup")
}

// TriggerNow 立即触发一次刷新，拉取进行中时跳过并返回 false。
func (s *Scheduler) TriggerNow() bool {
	return s.trigger("manual")
}

// Busy 报告是否有拉取正在进行
func (s *Scheduler) Busy() bool {
	return s.busy
}

func (s *Scheduler) trigger(reason string) bool {
	if s.stopped {
		return false
	}
	if s.busy {
		s.log.Info().Str("reason", reason).Msg("上一次拉取仍在进行，跳过本次刷新")
		if s.metrics != nil {
			s.metrics.ObserveSkippedRefresh()
		}
		return false
	}

	s.busy = true
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.inflight.Add(1)
	started := time.Now()

	go func() {
		defer s.inflight.Done()
		res, err := s.fetcher.Fetch(ctx)
		elapsed := time.Since(started)
		if !s.sched.Post(func() { s.complete(res, err, elapsed) }) {
			cancel()
		}
	}()
	return true
}

func (s *Scheduler) complete(res *fetch.Result, err error, elapsed time.Duration) {
	s.busy = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stopped {
		return
	}

	now := s.sched.Now()
	if s.metrics != nil {
		s.metrics.ObserveFetch(fetch.Classify(err), elapsed)
	}
	if s.health != nil {
		s.health.RecordFetch(err, now)
	}

	if err != nil {
		s.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("拉取快照失败，保留上次的视图")
		s.target.ShowTransportError(err)
		return
	}

	report := s.target.Reconcile(res.Snapshot)
	s.log.Debug().Int("diagnostics", len(report.Diagnostics)).Dur("elapsed", elapsed).Msg("快照已刷新")

	if s.archive != nil {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			if err := s.archive.Save(s.base, res.Raw, res.FetchedAt); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Msg("存档快照失败")
			}
		}()
	}
}

// Stop 取消周期任务和正在进行的拉取。
func (s *Scheduler) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.baseCancel()
	s.log.Info().Msg("刷新调度器已停止")
}

// Wait 等待已启动的拉取与存档goroutine退出，可以在任意goroutine上调用。
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}
