// Package portal 通过HTTP暴露引擎提交的视图。
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/SlpAus/ricebowl-portal/internal/platform/health"
	"github.com/SlpAus/ricebowl-portal/internal/reconcile"
	"github.com/SlpAus/ricebowl-portal/internal/schedule"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Engine 是处理器需要的引擎操作
type Engine interface {
	Document() *view.Document
	ToggleWeek(ctx context.Context, week int) (bool, error)
	Refresh(ctx context.Context) (bool, error)
	Report(ctx context.Context) (reconcile.Report, error)
}

// BreakerReporter 报告快照源熔断器的状态
type BreakerReporter interface {
	BreakerState() string
}

// ToggleResponse 是展开/折叠往期条目的响应
type ToggleResponse struct {
	Week     int  `json:"week"`
	Expanded bool `json:"expanded"`
}

// HealthResponse 是健康检查接口的响应
type HealthResponse struct {
	health.Report
	Breaker  string `json:"breaker,omitempty"`
	Revision string `json:"revision"`
	Sequence uint64 `json:"sequence"`
}

// Handler 持有处理器依赖
type Handler struct {
	engine  Engine
	status  *health.Status
	breaker BreakerReporter
	limiter *rate.Limiter
	log     zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler 创建处理器。status 与 breaker 可以为 nil。
// refreshLimit 不大于0时手动刷新不限流。
func NewHandler(engine Engine, status *health.Status, breaker BreakerReporter, refreshLimit float64, refreshBurst int, logger zerolog.Logger) *Handler {
	limit := rate.Inf
	if refreshLimit > 0 {
		limit = rate.Limit(refreshLimit)
	}
	if refreshBurst < 1 {
		refreshBurst = 1
	}
	return &Handler{
		engine:  engine,
		status:  status,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, refreshBurst),
		log:     logger.With().Str("component", "portal").Logger(),
		done:    make(chan struct{}),
	}
}

// Close 结束所有进行中的视图流，在HTTP服务器开始关闭时调用。
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// GetView 返回最近一次提交的视图，支持 If-None-Match。
func (h *Handler) GetView(c *gin.Context) {
	state := h.engine.Document().Current()
	if state.Revision != "" {
		etag := strconv.Quote(state.Revision)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	c.JSON(http.StatusOK, state)
}

// StreamView 以SSE推送每次提交后的视图
func (h *Handler) StreamView(c *gin.Context) {
	updates, cancel := h.engine.Document().Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if current := h.engine.Document().Current(); current.Revision != "" {
		c.SSEvent("view", current)
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case state := <-updates:
			c.SSEvent("view", state)
			return true
		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		}
	})
}

// ToggleWeek 展开或折叠一个往期条目
func (h *Handler) ToggleWeek(c *gin.Context) {
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil || week < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("无效的周数: %s", c.Param("week"))})
		return
	}

	expanded, err := h.engine.ToggleWeek(c.Request.Context(), week)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ToggleResponse{Week: week, Expanded: expanded})
	case errors.Is(err, reconcile.ErrUnknownWeek):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.unavailable(c, err)
	}
}

// TriggerRefresh 立即触发一次拉取。拉取进行中时不会重复触发。
func (h *Handler) TriggerRefresh(c *gin.Context) {
	if !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "刷新过于频繁，请稍后重试"})
		return
	}
	started, err := h.engine.Refresh(c.Request.Context())
	if err != nil {
		h.unavailable(c, err)
		return
	}
	if started {
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "busy"})
}

// GetReport 返回最近一次对账的报告
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.engine.Report(c.Request.Context())
	if err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetHealth 返回快照源与存档的健康状态
func (h *Handler) GetHealth(c *gin.Context) {
	resp := HealthResponse{Report: health.Report{Status: "ok"}}
	if h.status != nil {
		resp.Report = h.status.Report()
	}
	if h.breaker != nil {
		resp.Breaker = h.breaker.BreakerState()
	}
	state := h.engine.Document().Current()
	resp.Revision = state.Revision
	resp.Sequence = state.Sequence
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) unavailable(c *gin.Context, err error) {
	if errors.Is(err, schedule.ErrLoopStopped) || errors.Is(err, context.Canceled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "服务正在关闭"})
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("处理请求失败")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "内部错误"})
}
