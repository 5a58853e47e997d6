package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ErrLoopStopped 表示事件循环已经退出，无法再投递回调
var ErrLoopStopped = errors.New("事件循环已停止")

const defaultQueueSize = 64

// Loop 是一个单goroutine事件循环，实现了 Scheduler。
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

// NewLoop 创建一个尚未运行的事件循环，需要调用 Run 才会开始执行回调。
func NewLoop(logger zerolog.Logger) *Loop {
	return &Loop{
		queue: make(chan func(), defaultQueueSize),
		done:  make(chan struct{}),
		log:   logger.With().Str("component", "loop").Logger(),
	}
}

// Now 返回墙上时间
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Run 在当前goroutine上执行投递的回调，直到句柄收到停机信号。
func (l *Loop) Run(handle *lifecycle.Handle) {
	defer handle.Close()
	defer l.stop()
	l.log.Info().Msg("事件循环已启动")

	for {
		select {
		case <-handle.Done():
			l.log.Info().Msg("事件循环收到停机信号，正在退出")
			return
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Done 在循环退出后关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post 把 fn 投递到循环中。循环已停止时返回 false。
func (l *Loop) Post(fn func()) bool {
	return l.post(fn, nil)
}

// Call 投递 fn 并等待其在循环上执行完毕。
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Every 启动一个ticker goroutine，每个间隔向循环投递一次 fn。
func (l *Loop) Every(interval time.Duration, fn func()) Task {
	t := &loopTask{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				ok := l.post(func() {
					// 取消之前已入队的回调在这里被丢弃
					if !t.cancelled.Load() {
						fn()
					}
				}, t.stop)
				if !ok {
					return
				}
			}
		}
	}()
	return t
}

func (l *Loop) post(fn func(), stop <-chan struct{}) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	case <-stop:
		return false
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("事件循环回调发生panic")
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

type loopTask struct {
	cancelled atomic.Bool
	stop      chan struct{}
	once      sync.Once
}

func (t *loopTask) Cancel() {
	t.cancelled.Store(true)
	t.once.Do(func() { close(t.stop) })
}
