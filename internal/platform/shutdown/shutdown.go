package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// Server 是可以优雅关闭的HTTP服务器，*http.Server 满足该接口
type Server interface {
	Shutdown(ctx context.Context) error
}

// Step 是停机流程中的一个具名步骤
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Coordinator 负责编排应用程序的优雅停机流程。
// 它接收外部创建的生命周期管理器，并使用它来协调停机。
type Coordinator struct {
	Manager *lifecycle.Manager

	HTTPTimeout     time.Duration
	StepTimeout     time.Duration
	GracefulTimeout time.Duration

	// BeforeServices 在后台服务停止之前执行，例如拆除引擎
	BeforeServices []Step
	// Finally 在所有服务停止之后执行，例如关闭数据库连接
	Finally []Step

	log zerolog.Logger
}

// NewCoordinator 创建一个新的停机协调器
func NewCoordinator(manager *lifecycle.Manager, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		Manager:         manager,
		HTTPTimeout:     15 * time.Second,
		StepTimeout:     10 * time.Second,
		GracefulTimeout: 30 * time.Second,
		log:             logger.With().Str("component", "shutdown").Logger(),
	}
}

// ListenForSignalsAndShutdown 启动信号监听并阻塞，直到停机流程完成。
// fatal 收到错误时同样触发停机，可以为 nil。
func (c *Coordinator) ListenForSignalsAndShutdown(server Server, fatal <-chan error) []string {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return c.Run(sigChan, fatal, server)
}

// Run 阻塞直到收到信号或致命错误，然后执行完整的停机流程。
// 返回等待超时后仍未退出的服务。
func (c *Coordinator) Run(sigChan <-chan os.Signal, fatal <-chan error, server Server) []string {
	select {
	case sig := <-sigChan:
		c.log.Info().Str("signal", sig.String()).Msg("收到关闭信号，开始优雅停机...")
	case err := <-fatal:
		c.log.Error().Err(err).Msg("服务异常退出，开始停机...")
	}
	return c.Shutdown(server)
}

// Shutdown 依次关闭HTTP服务器、执行停机前步骤、停止后台服务并执行收尾步骤。
func (c *Coordinator) Shutdown(server Server) []string {
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.HTTPTimeout)
		if err := server.Shutdown(ctx); err != nil {
			c.log.Error().Err(err).Msg("HTTP服务器关闭错误")
		} else {
			c.log.Info().Msg("HTTP服务器已关闭")
		}
		cancel()
	}

	c.runSteps(c.BeforeServices)

	c.log.Info().Dur("timeout", c.GracefulTimeout).Msg("等待后台服务完成")
	c.Manager.Shutdown()
	remaining := c.Manager.WaitWithTimeout(c.GracefulTimeout)
	if len(remaining) == 0 {
		c.log.Info().Msg("所有服务已优雅关闭")
	} else {
		c.log.Warn().Strs("remaining", remaining).Msg("等待后台服务超时，放弃等待")
	}

	c.runSteps(c.Finally)
	c.log.Info().Msg("优雅停机完成")
	return remaining
}

func (c *Coordinator) runSteps(steps []Step) {
	for _, step := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), c.StepTimeout)
		if err := step.Fn(ctx); err != nil {
			c.log.Error().Err(err).Str("step", step.Name).Msg("停机步骤失败")
		} else {
			c.log.Debug().Str("step", step.Name).Msg("停机步骤完成")
		}
		cancel()
	}
}
