package health

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State 定义了健康状态的枚举类型
type State int

const (
	StateUnknown State = iota
	StateHealthy
	StateDegraded
	StateRebuilding
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRebuilding:
		return "rebuilding"
	case StateDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}

// Report 是 /api/health 返回的内容
type Report struct {
	Status              string    `json:"status"`
	Feed                string    `json:"feed"`
	Redis               string    `json:"redis"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Status 负责线程安全地管理快照源与Redis的健康状态。
type Status struct {
	mu  sync.RWMutex
	log zerolog.Logger

	feed        State
	lastSuccess time.Time
	lastError   string
	failures    int

	redis          State
	lastKnownRunID string
}

// NewStatus 创建状态管理器。redisEnabled 为 false 时Redis状态固定为 disabled。
func NewStatus(logger zerolog.Logger, redisEnabled bool) *Status {
	s := &Status{
		log:   logger.With().Str("component", "health").Logger(),
		feed:  StateUnknown,
		redis: StateDisabled,
	}
	if redisEnabled {
		s.redis = StateUnknown
	}
	return s
}

// RecordFetch 根据一次拉取的结果更新快照源状态。
func (s *Status) RecordFetch(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		if s.feed != StateHealthy && s.feed != StateUnknown {
			s.log.Info().Int("failures", s.failures).Msg("快照源已恢复，状态 -> [健康]")
		}
		s.feed = StateHealthy
		s.lastSuccess = at
		s.lastError = ""
		s.failures = 0
		return
	}

	s.failures++
	s.lastError = err.Error()
	if s.feed != StateDegraded {
		s.log.Warn().Err(err).Msg("快照拉取失败，状态 -> [降级]")
	}
	s.feed = StateDegraded
}

// Feed 返回快照源状态
func (s *Status) Feed() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// Redis 返回Redis状态
func (s *Status) Redis() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redis
}

// RedisAvailable 报告Redis当前是否可用
func (s *Status) RedisAvailable() bool {
	return s.Redis() == StateHealthy
}

// SetInitialRunID 在启动时设置初始的Redis run_id。
func (s *Status) SetInitialRunID(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownRunID = runID
	if s.redis == StateUnknown {
		s.redis = StateHealthy
	}
}

// AssessRedis 根据一次检查结果决定下一个状态，返回是否需要重新填充Redis热存档。
func (s *Status) AssessRedis(connected bool, runID string) (needsRebuild bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restarted := s.lastKnownRunID != "" && s.lastKnownRunID != runID
	switch s.redis {
	case StateDisabled:
		return false
	case StateUnknown:
		if connected {
			s.redis = StateHealthy
			needsRebuild = true
			s.log.Info().Msg("Redis已连接，状态 -> [健康]")
		} else {
			s.redis = StateDegraded
		}
	case StateHealthy:
		if !connected {
			s.redis = StateDegraded
			s.log.Warn().Msg("Redis连接丢失，状态 -> [降级]")
		} else if restarted {
			s.redis = StateRebuilding
			needsRebuild = true
			s.log.Warn().Str("from", s.lastKnownRunID).Str("to", runID).Msg("检测到Redis重启，状态 -> [重建中]")
		}
	case StateDegraded:
		if connected {
			// 离线期间热存档可能已丢失，恢复时总是重新填充
			s.redis = StateRebuilding
			needsRebuild = true
			s.log.Info().Msg("Redis连接已恢复，状态 -> [重建中]")
		}
	case StateRebuilding:
		if !connected {
			s.redis = StateDegraded
			s.log.Warn().Msg("重建期间Redis连接再次丢失，状态 -> [降级]")
		} else {
			// 仍处于重建状态说明上次重建失败了
			needsRebuild = true
		}
	}

	if connected {
		s.lastKnownRunID = runID
	}
	return needsRebuild
}

// MarkRebuildComplete 在一次重建尝试之后调用。
func (s *Status) MarkRebuildComplete(success bool, runIDAfterRebuild string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redis != StateRebuilding && s.redis != StateHealthy {
		return
	}
	if success && s.lastKnownRunID != runIDAfterRebuild {
		s.log.Warn().Str("from", s.lastKnownRunID).Str("to", runIDAfterRebuild).Msg("重建期间Redis再次重启，重建无效")
		s.lastKnownRunID = runIDAfterRebuild
		s.redis = StateRebuilding
		return
	}
	if success {
		if s.redis != StateHealthy {
			s.log.Info().Msg("Redis热存档重建成功，状态 -> [健康]")
		}
		s.redis = StateHealthy
		return
	}
	s.redis = StateRebuilding
	s.log.Error().Msg("Redis热存档重建失败，保持 [重建中] 以待重试")
}

// Report 返回当前的健康报告。只要快照源没有降级，整体就是 ok。
func (s *Status) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := "ok"
	if s.feed == StateDegraded {
		status = "degraded"
	}
	return Report{
		Status:              status,
		Feed:                s.feed.String(),
		Redis:               s.redis.String(),
		LastSuccess:         s.lastSuccess,
		LastError:           s.lastError,
		ConsecutiveFailures: s.failures,
	}
}
