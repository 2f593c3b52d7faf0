package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ViewsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shop_views_recorded_total",
		Help: "Product views accepted into the write-behind buffer.",
	})
	ViewsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shop_views_persisted_total",
		Help: "Product views written to storage.",
	})
	ViewsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shop_views_dropped_total",
		Help: "Product views discarded because their batch failed to persist.",
	})
	ViewFlushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_view_flushes_total",
		Help: "View buffer flushes by result.",
	}, []string{"result"})
	ViewBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shop_view_buffer_size",
		Help: "Events currently held in the view buffer.",
	})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shop_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		ViewsRecorded,
		ViewsPersisted,
		ViewsDropped,
		ViewFlushes,
		ViewBufferSize,
		RequestDuration,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
