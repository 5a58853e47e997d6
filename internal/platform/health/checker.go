package health

import (
	"context"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/platform/database"
	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const checkInterval = 5 * time.Second

// RebuildFunc 重新填充Redis中的热数据
type RebuildFunc func(ctx context.Context) error

// Checker 定期检查Redis，并在Redis重启或恢复后重新填充热存档。
type Checker struct {
	client   redis.Cmdable
	status   *Status
	rebuild  RebuildFunc
	interval time.Duration
	log      zerolog.Logger
}

// NewChecker 创建Redis健康检查器
func NewChecker(client redis.Cmdable, status *Status, rebuild RebuildFunc, logger zerolog.Logger) *Checker {
	return &Checker{
		client:   client,
		status:   status,
		rebuild:  rebuild,
		interval: checkInterval,
		log:      logger.With().Str("component", "redis-health").Logger(),
	}
}

// InitializeRunID 在启动时执行一次，获取并设置初始的run_id。
// 失败不是致命错误，Redis会被标记为降级。
func (c *Checker) InitializeRunID(ctx context.Context) {
	runID, err := database.RedisRunID(ctx, c.client)
	if err != nil {
		c.log.Warn().Err(err).Msg("无法获取初始Redis Run ID")
		c.status.AssessRedis(false, "")
		return
	}
	c.status.SetInitialRunID(runID)
	c.log.Info().Str("runID", runID).Msg("获取初始Redis Run ID成功")
}

// PerformCheck 执行一次完整的健康检查和可能的重建操作。
func (c *Checker) PerformCheck(ctx context.Context) {
	runID, err := database.RedisRunID(ctx, c.client)
	if !c.status.AssessRedis(err == nil, runID) {
		return
	}

	rebuildErr := c.rebuild(ctx)
	if rebuildErr != nil {
		c.log.Error().Err(rebuildErr).Msg("Redis热存档重建失败")
		c.status.MarkRebuildComplete(false, "")
		return
	}

	// 重建后再次检查run_id，确认重建期间Redis没有再次重启
	after, err := database.RedisRunID(ctx, c.client)
	if err != nil {
		c.status.MarkRebuildComplete(false, "")
		return
	}
	c.status.MarkRebuildComplete(true, after)
}

// Run 在后台定期执行检查，直到句柄收到停机信号。
func (c *Checker) Run(handle *lifecycle.Handle) {
	defer handle.Close()
	c.log.Info().Msg("Redis健康检查器已启动")

	for {
		if err := handle.Sleep(c.interval); err != nil {
			c.log.Info().Msg("Redis健康检查器正在关闭")
			return
		}
		c.PerformCheck(handle.Ctx())
	}
}
