package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task queue metrics
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_tasks_total",
			Help: "Total number of tasks by status: pending on enqueue, then the terminal status reached",
		},
		[]string{"status"},
	)

	TaskQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zoneweaver_task_queue_depth",
			Help: "Current number of pending tasks by priority",
		},
		[]string{"priority"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_scheduling_latency_seconds",
			Help:    "Time taken to execute a dispatched task, from claim to finalize",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Artifact engine metrics
	ArtifactBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneweaver_artifact_bytes_total",
			Help: "Total bytes downloaded across all artifact_download_url tasks",
		},
	)

	ArtifactScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_artifact_scans_total",
			Help: "Total number of artifact_scan_location runs by outcome",
		},
		[]string{"outcome"},
	)

	ArtifactInventoryBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneweaver_artifact_inventory_bytes",
			Help: "Current total size in bytes of all discovered artifacts across all storage locations",
		},
	)

	// Log stream metrics
	LogStreamSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneweaver_log_stream_sessions_active",
			Help: "Current number of active log-stream WebSocket sessions",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Command runner metrics
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_command_duration_seconds",
			Help:    "Subprocess execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 1200},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TaskQueueDepth)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(ArtifactBytesTotal)
	prometheus.MustRegister(ArtifactScansTotal)
	prometheus.MustRegister(ArtifactInventoryBytes)
	prometheus.MustRegister(LogStreamSessionsActive)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(CommandDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// SchedulingTimer is a Timer bound to SchedulingLatency specifically, for
// callers (the scheduler) that only ever time one histogram.
type SchedulingTimer struct{ t *Timer }

// NewSchedulingTimer starts timing a scheduling dispatch.
func NewSchedulingTimer() *SchedulingTimer {
	return &SchedulingTimer{t: NewTimer()}
}

// ObserveDuration records the elapsed time to SchedulingLatency.
func (s *SchedulingTimer) ObserveDuration() {
	s.t.ObserveDuration(SchedulingLatency)
}
