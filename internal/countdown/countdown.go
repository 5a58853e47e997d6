// Package countdown 实现问答截止倒计时的状态机。
//
// 状态转换：Idle → Running → Expired。Start 在任何状态下都会先取消自己持有的定时任务，
// 一个 Controller 同一时刻最多只有一个活动的 tick 来源。
package countdown

import (
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/format"
	"github.com/SlpAus/ricebowl-portal/internal/schedule"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/rs/zerolog"
)

// State 表示倒计时的状态
type State int

const (
	Idle State = iota
	Running
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// DefaultTick 是默认的刷新间隔
const DefaultTick = time.Second

// UrgentWithin 内剩余时间会被标记为紧急
const UrgentWithin = time.Hour

type Option func(*Controller)

// WithTick 设置 tick 间隔，非正值被忽略
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = logger.With().Str("component", "countdown").Logger()
	}
}

// WithObserver 在每次状态变化后调用 fn
func WithObserver(fn func(State)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// Controller 驱动倒计时绑定点。它的方法只能在调度器的事件循环上调用。
type Controller struct {
	sched    schedule.Scheduler
	sink     view.Sink
	tick     time.Duration
	log      zerolog.Logger
	observer func(State)

	state  State
	target time.Time
	task   schedule.Task
}

// New 创建一个处于 Idle 状态的倒计时控制器
func New(sched schedule.Scheduler, sink view.Sink, opts ...Option) *Controller {
	c := &Controller{
		sched: sched,
		sink:  sink,
		tick:  DefaultTick,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start 以 target 为截止时间开始倒计时，并立即计算一次。
func (c *Controller) Start(target time.Time) {
	c.cancelTask()
	c.target = target
	c.setState(Running)
	c.sink.SetVisible(view.BindCountdown, true)

	c.render()
	if c.state != Running {
		return
	}
	c.task = c.sched.Every(c.tick, c.onTick)
	c.log.Debug().Time("target", target).Msg("倒计时已启动")
}

// Stop 取消定时任务并回到 Idle
func (c *Controller) Stop() {
	c.cancelTask()
	if c.state != Idle {
		c.log.Debug().Msg("倒计时已停止")
	}
	c.setState(Idle)
}

// State 返回当前状态
func (c *Controller) State() State {
	return c.state
}

// Target 返回当前的截止时间，Idle 状态下返回 false。
func (c *Controller) Target() (time.Time, bool) {
	if c.state == Idle {
		return time.Time{}, false
	}
	return c.target, true
}

// Active 报告是否持有活动的定时任务
func (c *Controller) Active() bool {
	return c.task != nil
}

func (c *Controller) onTick() {
	if c.state != Running {
		return
	}
	c.render()
	view.Flush(c.sink)
}

func (c *Controller) render() {
	remaining := c.target.Sub(c.sched.Now())
	if remaining <= 0 {
		c.sink.SetText(view.BindCountdown, format.ClosedText)
		c.sink.SetAttr(view.BindCountdown, view.AttrUrgent, view.BoolAttr(false))
		c.sink.SetAttr(view.BindCountdown, view.AttrState, Expired.String())
		c.cancelTask()
		c.setState(Expired)
		c.log.Info().Time("target", c.target).Msg("问答已截止")
		return
	}
	c.sink.SetText(view.BindCountdown, format.Remaining(remaining))
	c.sink.SetAttr(view.BindCountdown, view.AttrUrgent, view.BoolAttr(remaining < UrgentWithin))
	c.sink.SetAttr(view.BindCountdown, view.AttrState, Running.String())
}

func (c *Controller) cancelTask() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.observer != nil {
		c.observer(s)
	}
}
