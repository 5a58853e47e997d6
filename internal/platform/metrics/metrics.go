// Package metrics 定义门户的 Prometheus 指标，使用独立的 Registry。
package metrics

import (
	"net/http"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/countdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ricebowl"

// 拉取结果标签
const (
	ResultSuccess   = "success"
	ResultTransport = "transport"
	ResultStatus    = "status"
	ResultMalformed = "malformed"
	ResultBreaker   = "breaker_open"
)

// Registry 持有门户的全部指标
type Registry struct {
	reg *prometheus.Registry

	FetchResults      *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	SkippedRefreshes  prometheus.Counter
	ReconcileDuration prometheus.Histogram
	Diagnostics       *prometheus.CounterVec
	CountdownState    prometheus.Gauge
	LastSuccess       prometheus.Gauge
}

// New 创建并注册所有指标
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FetchResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetches_total",
				Help:      "Snapshot fetch attempts by result",
			},
			[]string{"result"},
		),

		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_duration_seconds",
				Help:      "Duration of snapshot fetches in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		SkippedRefreshes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_skipped_total",
				Help:      "Refresh triggers skipped because a fetch was already in flight",
			},
		),

		ReconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of snapshot reconciliation in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),

		Diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_diagnostics_total",
				Help:      "Non-fatal reconciliation diagnostics by step",
			},
			[]string{"step"},
		),

		CountdownState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "countdown_state",
				Help:      "Countdown state (0 idle, 1 running, 2 expired)",
			},
		),

		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful snapshot fetch",
			},
		),
	}

	r.reg.MustRegister(
		r.FetchResults,
		r.FetchDuration,
		r.SkippedRefreshes,
		r.ReconcileDuration,
		r.Diagnostics,
		r.CountdownState,
		r.LastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler 返回 /metrics 的处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer 返回底层 Registry，供测试读取
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveReconcile(elapsed time.Duration, _ int) {
	r.ReconcileDuration.Observe(elapsed.Seconds())
}

func (r *Registry) ObserveDiagnostic(step string) {
	r.Diagnostics.WithLabelValues(step).Inc()
}

func (r *Registry) ObserveCountdown(state countdown.State) {
	r.CountdownState.Set(float64(state))
}

// ObserveFetch 记录一次拉取的结果
func (r *Registry) ObserveFetch(result string, elapsed time.Duration) {
	r.FetchResults.WithLabelValues(result).Inc()
	r.FetchDuration.Observe(elapsed.Seconds())
	if result == ResultSuccess {
		r.LastSuccess.SetToCurrentTime()
	}
}

func (r *Registry) ObserveSkippedRefresh() {
	r.SkippedRefreshes.Inc()
}
