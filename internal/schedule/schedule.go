// Package schedule 提供引擎使用的单线程调度原语。
//
// 所有引擎状态都只在事件循环的goroutine上被修改；定时器只负责把回调投递进循环，
// 因此组件之间不需要任何锁。
package schedule

import "time"

// Clock 提供当前时间
type Clock interface {
	Now() time.Time
}

// Task 是一个可取消的重复任务句柄。Cancel 之后任务的回调不会再被执行。
type Task interface {
	Cancel()
}

// Scheduler 是倒计时控制器和刷新调度器依赖的调度原语。
type Scheduler interface {
	Clock
	// Every 以固定间隔在事件循环上重复执行 fn，首次执行发生在一个间隔之后。
	Every(interval time.Duration, fn func()) Task
	// Post 把 fn 投递到事件循环上执行，循环已停止时返回 false。
	Post(fn func()) bool
}
