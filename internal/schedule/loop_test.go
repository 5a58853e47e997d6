package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startLoop(t *testing.T) (*Loop, *lifecycle.Manager) {
	t.Helper()
	m := lifecycle.NewManager(zerolog.Nop())
	l := NewLoop(zerolog.Nop())
	h, err := m.NewServiceHandle("loop")
	require.NoError(t, err)
	go l.Run(h)
	return l, m
}

func TestLoopCallRunsOnLoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	l, m := startLoop(t)

	var ran bool
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	m.Shutdown()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrLoopStopped)
}

func TestLoopSurvivesPanickingCallback(t *testing.T) {
	defer goleak.VerifyNone(t)
	l, m := startLoop(t)

	require.NoError(t, l.Call(context.Background(), func() { panic("boom") }))
	var ran bool
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	m.Shutdown()
	m.WaitWithTimeout(time.Second)
}

func TestLoopEveryStopsAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	l, m := startLoop(t)

	var count atomic.Int32
	task := l.Every(5*time.Millisecond, func() { count.Add(1) })
	require.Eventually(t, func() bool { return count.Load() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, l.Call(context.Background(), task.Cancel))
	seen := count.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seen, count.Load())

	m.Shutdown()
	m.WaitWithTimeout(time.Second)
}

func TestLoopShutdownReleasesTickers(t *testing.T) {
	defer goleak.VerifyNone(t)
	l, m := startLoop(t)

	l.Every(time.Millisecond, func() {})
	l.Every(time.Hour, func() {})

	m.Shutdown()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
	<-l.Done()
}
