// Package metrics provides Prometheus instrumentation for the danmaku
// comment platform: counters for accepted and rejected comments, a latency
// histogram for the submission pipeline, and gauges for viewers and
// connections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommentsTotal counts processed comment submissions, labeled by result:
	// "accepted" or "rejected".
	CommentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danmaku_comments_total",
		Help: "Total number of comment submissions processed",
	}, []string{"result"})

	// RejectionsTotal counts rejected submissions by rejection code.
	RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danmaku_rejections_total",
		Help: "Total number of rejected comment submissions",
	}, []string{"code"})

	// SubmitLatency records end-to-end submission pipeline latency in seconds.
	SubmitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "danmaku_submit_latency_seconds",
		Help:    "Comment submission pipeline latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// ViewersTotal tracks the current number of joined viewers across streams.
	ViewersTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "danmaku_viewers_total",
		Help: "Current number of joined viewers across all streams",
	})

	// ConnectionsTotal tracks active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "danmaku_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// AutoBlocksTotal counts automatic blocks applied by violation escalation.
	AutoBlocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_auto_blocks_total",
		Help: "Total number of automatic user blocks",
	})
)

func init() {
	prometheus.MustRegister(
		CommentsTotal,
		RejectionsTotal,
		SubmitLatency,
		ViewersTotal,
		ConnectionsTotal,
		AutoBlocksTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
