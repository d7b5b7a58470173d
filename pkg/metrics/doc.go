/*
Package metrics provides Prometheus metrics collection and exposition for
zoneweaverd's task execution subsystem.

Metrics are defined and registered at package init, and exposed for
scraping via an HTTP handler mounted at /metrics.

# Metrics Catalog

Task Queue Metrics:

zoneweaver_tasks_total{status}:
  - Type: Counter
  - Description: Tasks counted once on enqueue (status=pending) and once on
    reaching a terminal status; cancelled counts only cancellations
    propagated from a failed or cancelled dependency, not a pending task
    cancelled directly
  - Labels: status (pending, completed, failed, cancelled)

zoneweaver_task_queue_depth{priority}:
  - Type: Gauge
  - Description: Current number of pending tasks by priority
  - Labels: priority (critical, high, medium, low, background)

zoneweaver_scheduling_latency_seconds:
  - Type: Histogram
  - Description: Time from task claim to finalize
  - Buckets: Default Prometheus buckets

Artifact Engine Metrics:

zoneweaver_artifact_bytes_total:
  - Type: Counter
  - Description: Total bytes downloaded across all artifact_download_url tasks

zoneweaver_artifact_scans_total{outcome}:
  - Type: Counter
  - Description: Total artifact_scan_location runs by outcome (success, error)

zoneweaver_artifact_inventory_bytes:
  - Type: Gauge
  - Description: Current total size of all discovered artifacts

Log Stream Metrics:

zoneweaver_log_stream_sessions_active:
  - Type: Gauge
  - Description: Current number of active log-stream WebSocket sessions

API Metrics:

zoneweaver_api_requests_total{method, status}:
  - Type: Counter
  - Description: Total API requests by method and status

zoneweaver_api_request_duration_seconds{method}:
  - Type: Histogram
  - Description: API request duration in seconds

Command Runner Metrics:

zoneweaver_command_duration_seconds{operation}:
  - Type: Histogram
  - Description: Subprocess execution duration, labeled by the task operation
    that invoked it

# Usage

	import "github.com/makr91/zoneweaver-api/pkg/metrics"

	metrics.TasksTotal.WithLabelValues("completed").Inc()
	metrics.TaskQueueDepth.WithLabelValues("high").Set(3)

	timer := metrics.NewSchedulingTimer()
	// ... dispatch task ...
	timer.ObserveDuration()

	http.Handle("/metrics", metrics.Handler())

# Collector

Collector periodically samples the Store for gauges the scheduler doesn't
update inline (queue depth by priority, artifact inventory size). It runs
on a 15-second tick, mirroring the sampling cadence the teacher's
collector used for cluster-wide gauges.

# Integration Points

This package integrates with:

  - pkg/scheduler: records TasksTotal and SchedulingLatency
  - Collector: sets TaskQueueDepth and ArtifactInventoryBytes from the store

ArtifactBytesTotal, ArtifactScansTotal, LogStreamSessionsActive,
APIRequestsTotal, APIRequestDuration and CommandDuration are registered,
but no package updates them, so they stay at zero.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
