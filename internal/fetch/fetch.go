// Package fetch 从上游拉取活动快照。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var (
	// ErrStatus 表示上游返回了非2xx状态码
	ErrStatus = errors.New("上游返回错误状态码")
	// ErrMalformed 表示上游文档不是JSON对象
	ErrMalformed = errors.New("上游文档格式错误")
	// ErrBreakerOpen 表示熔断器处于打开状态，本次没有发出请求
	ErrBreakerOpen = errors.New("熔断器已打开")
)

const maxBodyBytes = 4 << 20

// Result 是一次成功拉取的结果
type Result struct {
	Snapshot  *campaign.Snapshot
	Raw       []byte
	FetchedAt time.Time
}

// Fetcher 获取一个快照
type Fetcher interface {
	Fetch(ctx context.Context) (*Result, error)
}

// Config 配置 HTTP 拉取器
type Config struct {
	URL     string
	Timeout time.Duration
	// BreakerFailures 是熔断前允许的连续失败次数，0 表示不启用熔断
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// HTTPFetcher 通过一次 GET 请求获取快照，外面包了一层熔断器。
type HTTPFetcher struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewHTTPFetcher 创建拉取器
func NewHTTPFetcher(cfg Config, logger zerolog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	f := &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.With().Str("component", "fetch").Logger(),
	}
	if cfg.BreakerFailures > 0 {
		f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "snapshot-source",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			IsSuccessful: func(err error) bool {
				// 调用方取消不算上游失败
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				f.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
			},
		})
	}
	return f
}

// Fetch 拉取并解码一个快照
func (f *HTTPFetcher) Fetch(ctx context.Context) (*Result, error) {
	if f.breaker == nil {
		return f.fetch(ctx)
	}
	v, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// BreakerState 返回熔断器状态，未启用时返回 "disabled"。
func (f *HTTPFetcher) BreakerState() string {
	if f.breaker == nil {
		return "disabled"
	}
	return f.breaker.State().String()
}

func (f *HTTPFetcher) fetch(ctx context.Context) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 %s 失败: %w", f.cfg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	snap, err := campaign.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(snap.Issues) > 0 {
		f.log.Debug().Int("issues", len(snap.Issues)).Msg("快照包含字段级问题")
	}
	return &Result{Snapshot: snap, Raw: raw, FetchedAt: time.Now().UTC()}, nil
}

// Classify 把拉取错误归类为指标标签
func Classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrBreakerOpen):
		return "breaker_open"
	default:
		return "transport"
	}
}
