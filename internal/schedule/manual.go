package schedule

import (
	"sync"
	"time"
)

// Manual 是一个手动推进的时钟和调度器，供测试确定性地驱动定时逻辑。
// 回调只在 Advance / RunPosted 的调用方goroutine上执行。
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	tasks  []*manualTask
	posted []func()
}

type manualTask struct {
	m         *Manual
	id        int
	next      time.Time
	interval  time.Duration
	fn        func()
	cancelled bool
}

// NewManual 创建一个从 start 开始的手动调度器
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(interval time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, id: m.seq, next: m.now.Add(interval), interval: interval, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Post 把回调排队，直到 RunPosted 被调用。
func (m *Manual) Post(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, fn)
	return true
}

// RunPosted 执行所有已排队的回调并返回执行的数量。
func (m *Manual) RunPosted() int {
	m.mu.Lock()
	posted := m.posted
	m.posted = nil
	m.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
	return len(posted)
}

// Advance 把时钟向前推进 d，按时间顺序触发期间到期的任务。
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDueLocked(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.next
		t.next = t.next.Add(t.interval)
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

// Pending 返回仍然有效的重复任务数量
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) nextDueLocked(target time.Time) *manualTask {
	var due *manualTask
	for _, t := range m.tasks {
		if t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.id < due.id) {
			due = t
		}
	}
	return due
}

func (t *manualTask) Cancel() {
	m := t.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	for i, other := range m.tasks {
		if other == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			break
		}
	}
}
