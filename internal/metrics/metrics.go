// Package metrics 교차 도메인 요청과 실시간 채널의 프로메테우스 지표를 정의합니다.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pops"

// Collectors 지표 수집기 묶음입니다. nil 포인터로 호출해도 아무 일도 하지 않습니다.
type Collectors struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	connected    *prometheus.GaugeVec
	appStatus    *prometheus.GaugeVec
}

// New 새 레지스트리에 지표를 등록합니다.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Total number of cross-domain requests by outcome.",
		}, []string{"app", "method", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Duration of cross-domain requests that reached the network.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms ~ 10s
		}, []string{"app", "method"}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "cache_lookups_total",
			Help:      "Request cache lookups by result.",
		}, []string{"app", "result"}),

		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Scheduled reconnect attempts per application channel.",
		}, []string{"app"}),

		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connected",
			Help:      "1 while the application channel is connected.",
		}, []string{"app"}),

		appStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "online",
			Help:      "1 when the last health check reported the application online.",
		}, []string{"app"}),
	}

	c.registry.MustRegister(
		c.requests,
		c.duration,
		c.cacheLookups,
		c.reconnects,
		c.connected,
		c.appStatus,
		prometheus.NewGoCollector(),
	)
	return c
}

// Handler 등록된 지표를 노출하는 HTTP 핸들러를 반환합니다.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest 요청 한 건의 결과와 소요 시간을 기록합니다.
func (c *Collectors) ObserveRequest(app, method, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(app, method, outcome).Inc()
	if elapsed > 0 {
		c.duration.WithLabelValues(app, method).Observe(elapsed.Seconds())
	}
}

// CacheLookup 캐시 조회 결과를 기록합니다.
func (c *Collectors) CacheLookup(app string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(app, result).Inc()
}

// Reconnect 재연결 예약 한 건을 기록합니다.
func (c *Collectors) Reconnect(app string) {
	if c == nil {
		return
	}
	c.reconnects.WithLabelValues(app).Inc()
}

// SetConnected 채널 연결 여부를 기록합니다.
func (c *Collectors) SetConnected(app string, connected bool) {
	if c == nil {
		return
	}
	c.connected.WithLabelValues(app).Set(boolToFloat(connected))
}

// SetOnline 상태 점검 결과를 기록합니다.
func (c *Collectors) SetOnline(app string, online bool) {
	if c == nil {
		return
	}
	c.appStatus.WithLabelValues(app).Set(boolToFloat(online))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
