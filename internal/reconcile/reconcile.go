// Package reconcile 把一个快照转换为对视图绑定点的提交。
//
// Reconciler 按固定顺序执行各个步骤，每个步骤都是幂等且相互隔离的：
// 某个步骤出错或panic只会产生一条诊断并退回默认展示，不会中断后续步骤。
// 每个快照在所有步骤完成后只 Flush 一次。
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/countdown"
	"github.com/SlpAus/ricebowl-portal/internal/schedule"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrUnknownWeek 表示往期列表中没有该周
var ErrUnknownWeek = errors.New("往期列表中没有该周")

// Options 控制展示规则
type Options struct {
	DefaultTheme string
	// RevealAt 是总额自动揭晓的时间
	RevealAt time.Time
	// ScaleMax 是温度计满格对应的金额
	ScaleMax decimal.Decimal
	// MinFill 是总额可见时温度计的最小填充比例
	MinFill       decimal.Decimal
	CountdownTick time.Duration
	// MultiOpen 允许同时展开多个往期条目
	MultiOpen bool
}

// DefaultOptions 返回默认展示规则
func DefaultOptions() Options {
	return Options{
		DefaultTheme:  campaign.DefaultTheme,
		RevealAt:      time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		ScaleMax:      decimal.NewFromInt(5000),
		MinFill:       decimal.RequireFromString("0.02"),
		CountdownTick: countdown.DefaultTick,
	}
}

// Hooks 接收对账过程的观测数据，通常由指标层实现。
type Hooks interface {
	ObserveReconcile(elapsed time.Duration, diagnostics int)
	ObserveDiagnostic(step string)
	ObserveCountdown(state countdown.State)
}

type nopHooks struct{}

func (nopHooks) ObserveReconcile(time.Duration, int) {}
func (nopHooks) ObserveDiagnostic(string)            {}
func (nopHooks) ObserveCountdown(countdown.State)    {}

// Diagnostic 是一条非致命的对账问题
type Diagnostic struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Report 描述一次对账的结果
type Report struct {
	At             time.Time    `json:"at"`
	CurrentWeek    int          `json:"currentWeek"`
	HasCurrentQuiz bool         `json:"hasCurrentQuiz"`
	AggregateShown bool         `json:"aggregateShown"`
	Diagnostics    []Diagnostic `json:"diagnostics"`
}

// viewState 是 Reconciler 在快照之间保留的全部状态
type viewState struct {
	pastWeeks   []int
	expanded    map[int]bool
	closeTarget *time.Time
	last        Report
	// reveal 在揭晓时间到达时重新提交总额，快照之间也能让总额按时出现
	reveal schedule.Task
}

// Reconciler 持有视图状态记录和倒计时控制器。
// 除构造函数外，所有方法都必须在调度器的事件循环上调用。
type Reconciler struct {
	sched     schedule.Scheduler
	sink      view.Sink
	opts      Options
	log       zerolog.Logger
	hooks     Hooks
	countdown *countdown.Controller
	state     *viewState
}

type Option func(*Reconciler)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.log = logger.With().Str("component", "reconciler").Logger()
	}
}

func WithHooks(h Hooks) Option {
	return func(r *Reconciler) {
		if h != nil {
			r.hooks = h
		}
	}
}

// New 创建一个 Reconciler
func New(sched schedule.Scheduler, sink view.Sink, opts Options, options ...Option) *Reconciler {
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = campaign.DefaultTheme
	}
	r := &Reconciler{
		sched: sched,
		sink:  sink,
		opts:  opts,
		log:   zerolog.Nop(),
		hooks: nopHooks{},
		state: newViewState(),
	}
	for _, o := range options {
		o(r)
	}
	r.countdown = countdown.New(sched, sink,
		countdown.WithTick(opts.CountdownTick),
		countdown.WithLogger(r.log),
		countdown.WithObserver(r.hooks.ObserveCountdown),
	)
	return r
}

func newViewState() *viewState {
	return &viewState{expanded: make(map[int]bool)}
}

// pass 是一次对账过程中步骤之间共享的中间结果
type pass struct {
	snap       *campaign.Snapshot
	now        time.Time
	alms       decimal.Decimal
	classTotal decimal.Decimal
	aggregate  *decimal.Decimal
	report     *Report
}

type step struct {
	name     string
	run      func(p *pass) error
	fallback func(p *pass)
}

// Reconcile 把快照完整地提交到视图，并返回本次的诊断报告。
func (r *Reconciler) Reconcile(snap *campaign.Snapshot) Report {
	if r.state == nil {
		r.log.Warn().Msg("Reconciler 已拆除，忽略快照")
		return Report{}
	}
	started := time.Now()
	p := &pass{
		snap:   snap,
		now:    r.sched.Now(),
		report: &Report{At: r.sched.Now(), CurrentWeek: snap.CurrentWeek},
	}
	for _, issue := range snap.Issues {
		r.diagnose(p, "snapshot", issue.String())
	}

	r.cancelReveal()
	r.commitBanner(false)
	for _, s := range r.steps() {
		r.runStep(p, s)
	}
	r.armRevealIfGated(p)
	view.Flush(r.sink)

	r.state.last = *p.report
	r.hooks.ObserveReconcile(time.Since(started), len(p.report.Diagnostics))
	r.log.Debug().
		Int("currentWeek", snap.CurrentWeek).
		Int("diagnostics", len(p.report.Diagnostics)).
		Msg("快照已提交")
	return *p.report
}

func (r *Reconciler) steps() []step {
	return []step{
		{name: "theme", run: r.applyTheme, fallback: r.defaultTheme},
		{name: "branding", run: r.applyBranding},
		{name: "donation-link", run: r.applyDonationLink},
		{name: "online-alms", run: r.applyOnlineAlms, fallback: r.defaultOnlineAlms},
		{name: "announcements", run: r.applyAnnouncements, fallback: r.hideAnnouncements},
		{name: "current-quiz", run: r.applyCurrentQuiz, fallback: r.hideCurrentQuiz},
		{name: "past-weeks", run: r.applyPastWeeks, fallback: r.clearPastWeeks},
		{name: "leaderboard", run: r.applyLeaderboard, fallback: r.emptyLeaderboard},
		{name: "class-total", run: r.applyClassTotal, fallback: r.defaultClassTotal},
		r.aggregateStep(),
		r.thermometerStep(),
	}
}

func (r *Reconciler) aggregateStep() step {
	return step{name: "aggregate", run: r.applyAggregate, fallback: r.hideAggregate}
}

func (r *Reconciler) thermometerStep() step {
	return step{name: "thermometer", run: r.applyThermometer, fallback: r.clearThermometer}
}

func (r *Reconciler) runStep(p *pass, s step) {
	if err := r.protect(s.run, p); err != nil {
		r.diagnose(p, s.name, err.Error())
		if s.fallback == nil {
			return
		}
		if err := r.protect(func(p *pass) error { s.fallback(p); return nil }, p); err != nil {
			r.diagnose(p, s.name, "默认展示失败: "+err.Error())
		}
	}
}

func (r *Reconciler) protect(fn func(p *pass) error, p *pass) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return fn(p)
}

func (r *Reconciler) diagnose(p *pass, step, message string) {
	p.report.Diagnostics = append(p.report.Diagnostics, Diagnostic{Step: step, Message: message})
	r.hooks.ObserveDiagnostic(step)
	r.log.Warn().Str("step", step).Msg(message)
}

// LastReport 返回最近一次对账的报告
func (r *Reconciler) LastReport() Report {
	if r.state == nil {
		return Report{}
	}
	return r.state.last
}

// Countdown 返回 Reconciler 持有的倒计时控制器
func (r *Reconciler) Countdown() *countdown.Controller {
	return r.countdown
}

// PastWeeks 返回当前往期列表中的周数，以及每一周是否展开。
func (r *Reconciler) PastWeeks() ([]int, map[int]bool) {
	if r.state == nil {
		return nil, nil
	}
	expanded := make(map[int]bool, len(r.state.expanded))
	for w, v := range r.state.expanded {
		expanded[w] = v
	}
	return append([]int(nil), r.state.pastWeeks...), expanded
}

// ToggleWeek 展开或折叠一个往期条目，返回它的新状态。
// 默认同一时刻只有一个条目展开。
func (r *Reconciler) ToggleWeek(week int) (bool, error) {
	if r.state == nil || !containsWeek(r.state.pastWeeks, week) {
		return false, fmt.Errorf("%w: 第%d周", ErrUnknownWeek, week)
	}
	open := !r.state.expanded[week]
	if open && !r.opts.MultiOpen {
		for _, other := range r.state.pastWeeks {
			if other != week && r.state.expanded[other] {
				r.state.expanded[other] = false
				r.sink.SetAttr(view.PastWeekID(other), view.AttrExpanded, view.BoolAttr(false))
			}
		}
	}
	r.state.expanded[week] = open
	r.sink.SetAttr(view.PastWeekID(week), view.AttrExpanded, view.BoolAttr(open))
	view.Flush(r.sink)
	return open, nil
}

// TransportErrorText 是拉取失败时横幅中显示的文本
const TransportErrorText = "Unable to refresh campaign data. Showing the last available update."

// ShowTransportError 显示拉取失败的横幅，已渲染的内容保持不变。
func (r *Reconciler) ShowTransportError(err error) {
	if r.state == nil {
		return
	}
	r.log.Warn().Err(err).Msg("显示拉取失败横幅")
	r.commitBanner(true)
	view.Flush(r.sink)
}

// ClearTransportError 隐藏拉取失败横幅
func (r *Reconciler) ClearTransportError() {
	if r.state == nil {
		return
	}
	r.commitBanner(false)
	view.Flush(r.sink)
}

func (r *Reconciler) commitBanner(show bool) {
	if show {
		r.sink.SetText(view.BindErrorBanner, TransportErrorText)
	} else {
		r.sink.SetText(view.BindErrorBanner, "")
	}
	r.sink.SetVisible(view.BindErrorBanner, show)
}

// Teardown 停止倒计时并丢弃视图状态记录，之后的调用都不再产生提交。
func (r *Reconciler) Teardown() {
	if r.state == nil {
		return
	}
	r.countdown.Stop()
	r.cancelReveal()
	r.state = nil
	r.log.Info().Msg("Reconciler 已拆除")
}

func containsWeek(weeks []int, week int) bool {
	for _, w := range weeks {
		if w == week {
			return true
		}
	}
	return false
}
