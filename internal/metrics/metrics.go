package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livechat"

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	// Change feed metrics
	changesReceived *prometheus.CounterVec
	changesRejected *prometheus.CounterVec
	feedDepth       prometheus.Gauge
	dispatchSeconds prometheus.Histogram

	// Engine metrics
	recomputes        *prometheus.CounterVec
	skipped           *prometheus.CounterVec
	chartUpdates      *prometheus.CounterVec
	chartUpdateErrors *prometheus.CounterVec
	departmentVisible prometheus.Gauge
	sourceRecords     *prometheus.GaugeVec
	rollovers         prometheus.Counter

	// WebSocket metrics
	wsConnections    prometheus.Counter
	wsDisconnections prometheus.Counter
	wsActive         prometheus.Gauge
	wsMessages       prometheus.Counter
	wsErrors         prometheus.Counter

	// HTTP metrics
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics(prometheus.NewRegistry())
	})
	return instance
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		changesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "changes_total",
			Help:      "Change notifications delivered, labeled by source and kind",
		}, []string{"source", "kind"}),
		changesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "changes_rejected_total",
			Help:      "Change notifications that could not be decoded or queued",
		}, []string{"source"}),
		feedDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "queue_depth",
			Help:      "Notifications waiting for the event loop",
		}),
		dispatchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent applying and delivering one notification",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recomputes_total",
			Help:      "Aggregate recomputations, labeled by view",
		}, []string{"view"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "skipped_total",
			Help:      "Recomputations skipped, labeled by reason",
		}, []string{"reason"}),
		chartUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chart",
			Name:      "updates_total",
			Help:      "Values pushed to charts",
		}, []string{"chart"}),
		chartUpdateErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chart",
			Name:      "update_errors_total",
			Help:      "Chart updates lost to renderer failures",
		}, []string{"chart"}),
		departmentVisible: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chart",
			Name:      "department_chart_visible",
			Help:      "1 when the per-department chart is shown",
		}),
		sourceRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "records",
			Help:      "Records currently held per source",
		}, []string{"source"}),
		rollovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rollovers_total",
			Help:      "Hourly bucket rollovers",
		}),
		wsConnections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Dashboard websocket connections accepted",
		}),
		wsDisconnections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "disconnections_total",
			Help:      "Dashboard websocket connections closed",
		}),
		wsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Dashboard websocket connections currently open",
		}),
		wsMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Frames written to dashboard clients",
		}),
		wsErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "errors_total",
			Help:      "Websocket read/write errors",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, labeled by route and status",
		}, []string{"endpoint", "status"}),
		httpDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// RecordChange counts a delivered change notification
func (m *Metrics) RecordChange(source string, kind types.ChangeKind) {
	m.changesReceived.WithLabelValues(source, string(kind)).Inc()
}

// RecordChangeRejected counts a notification that was dropped before delivery
func (m *Metrics) RecordChangeRejected(source string) {
	m.changesRejected.WithLabelValues(source).Inc()
}

// SetFeedDepth records the number of queued notifications
func (m *Metrics) SetFeedDepth(n int) {
	m.feedDepth.Set(float64(n))
}

// ObserveDispatch records the time spent on one notification
func (m *Metrics) ObserveDispatch(d time.Duration) {
	m.dispatchSeconds.Observe(d.Seconds())
}

// RecordRecompute counts a recomputation of view
func (m *Metrics) RecordRecompute(view string) {
	m.recomputes.WithLabelValues(view).Inc()
}

// RecordSkip counts a skipped recomputation
func (m *Metrics) RecordSkip(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

// RecordChartUpdate counts a successful chart update
func (m *Metrics) RecordChartUpdate(chart types.ChartID) {
	m.chartUpdates.WithLabelValues(string(chart)).Inc()
}

// RecordChartUpdateError counts a failed chart update
func (m *Metrics) RecordChartUpdateError(chart types.ChartID) {
	m.chartUpdateErrors.WithLabelValues(string(chart)).Inc()
}

// SetDepartmentChartVisible mirrors the department chart visibility
func (m *Metrics) SetDepartmentChartVisible(visible bool) {
	if visible {
		m.departmentVisible.Set(1)
		return
	}
	m.departmentVisible.Set(0)
}

// SetSourceRecords records the size of a source collection
func (m *Metrics) SetSourceRecords(source string, n int) {
	m.sourceRecords.WithLabelValues(source).Set(float64(n))
}

// RecordRollover counts an hourly rollover
func (m *Metrics) RecordRollover() {
	m.rollovers.Inc()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.wsConnections.Inc()
	m.wsActive.Inc()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.wsDisconnections.Inc()
	m.wsActive.Dec()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.wsMessages.Inc()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.wsErrors.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpDurations.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Registry exposes the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
