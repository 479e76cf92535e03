package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdetect_jobs_processed_total",
		Help: "Total number of scan jobs processed, by status",
	}, []string{"status"})

	ScanStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gdetect_scan_stage_duration_seconds",
		Help:    "Duration of scan pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdetect_frames_analyzed_total",
		Help: "Total number of frames submitted for analysis across all scans",
	})

	IssuesDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdetect_issues_detected_total",
		Help: "Total number of safety issues detected, by issue type",
	}, []string{"issue_type"})

	AnalysisErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdetect_analysis_errors_total",
		Help: "Total number of per-frame analysis failures",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdetect_active_workers",
		Help: "Number of scan jobs currently being processed",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdetect_retry_total",
		Help: "Total number of scan job retries",
	}, []string{"attempt"})
)
