// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineJobsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_processed_total",
			Help: "Total number of candidate postings evaluated across all passes",
		},
	)

	PipelineDevicesMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_devices_matched_total",
			Help: "Total number of devices with at least one new match",
		},
	)

	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of push notifications delivered",
		},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Total number of eligible matches suppressed locally",
		},
		[]string{"reason"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of delivery failures by error kind",
		},
		[]string{"error_kind"},
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pipeline_pass_duration_seconds",
			Help: "Duration of one full orchestrator pass in seconds",
		},
	)

	TokensDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "device_tokens_deactivated_total",
			Help: "Total number of device tokens deactivated after permanent provider rejections",
		},
	)
)
