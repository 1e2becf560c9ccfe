// 包 metrics: 注记索引的 Prometheus 指标；init 时注册到默认注册表，宿主按需挂载 Handler
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AddedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anno_added_total",
		Help: "Total annotations added to the index",
	})
	RemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anno_removed_total",
		Help: "Total annotations removed from the index",
	})
	TilesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anno_tiles_created_total",
		Help: "Total annotation tiles created lazily",
	})
	Live = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "anno_live",
		Help: "Annotations currently held by the index",
	})
	AddDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anno_add_duration_ms",
		Help:    "AddPointAnnotations duration in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 200},
	})
	QueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anno_query_duration_ms",
		Help:    "GetAnnotationsInBounds duration in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 200},
	})
	NotifyDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anno_notify_dropped_total",
		Help: "Invalidation hints dropped because the notify queue was full or closed",
	})
)

func init() {
	prometheus.MustRegister(AddedTotal)
	prometheus.MustRegister(RemovedTotal)
	prometheus.MustRegister(TilesCreatedTotal)
	prometheus.MustRegister(Live)
	prometheus.MustRegister(AddDurationMs)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(NotifyDroppedTotal)
}

// Handler: 返回 Prometheus 指标处理器，供宿主挂载到 /metrics
func Handler() http.Handler { return promhttp.Handler() }
