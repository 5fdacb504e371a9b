package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anim_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anim_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anim_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anim_converter_upload_bytes_total",
			Help: "Total number of uploaded bytes written to scratch space",
		},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anim_converter_conversions_total",
			Help: "Total number of conversion requests by output format and outcome",
		},
		[]string{"format", "status"}, // status: "success", "input", "capacity", "staging", "encode", "verify"
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anim_converter_conversion_duration_seconds",
			Help:    "End-to-end conversion duration in seconds, excluding delivery",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"format"},
	)

	ConversionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anim_converter_conversions_in_progress",
			Help: "Number of conversions currently holding a worker slot",
		},
	)

	TransparencyDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anim_converter_transparency_dropped_total",
			Help: "Conversions where transparency was requested but no alpha-capable codec was available",
		},
		[]string{"format"},
	)

	StagedFrames = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anim_converter_staged_frames",
			Help:    "Number of frames staged per frame-sequence conversion",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	ArtifactBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anim_converter_artifact_bytes",
			Help:    "Size of verified output artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
		[]string{"format"},
	)

	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anim_converter_delivery_failures_total",
			Help: "Artifacts that could not be fully delivered to the client",
		},
	)
)

// Encoder metrics
var (
	EncodeStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anim_converter_encode_stage_duration_seconds",
			Help:    "ffmpeg stage duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	EncodeStagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anim_converter_encode_stages_total",
			Help: "Total number of ffmpeg stage invocations by stage and status",
		},
		[]string{"stage", "status"},
	)

	EncodeStagesInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anim_converter_encode_stages_in_progress",
			Help: "Number of ffmpeg processes currently running",
		},
	)
)

// Scratch space metrics
var (
	CleanupPathsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anim_converter_cleanup_paths_total",
			Help: "Total number of temporary paths released",
		},
	)

	CleanupErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anim_converter_cleanup_errors_total",
			Help: "Total number of temporary paths that could not be removed",
		},
	)

	ScratchBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anim_converter_scratch_bytes",
			Help: "Bytes currently held in the scratch directory",
		},
	)

	ScratchEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anim_converter_scratch_entries",
			Help: "Top-level entries currently present in the scratch directory",
		},
	)

	StaleSweepRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anim_converter_stale_sweep_removed_total",
			Help: "Leftover scratch entries removed by the stale sweep",
		},
	)
)

// Filesystem retry metrics, for scratch directories on NFS
var (
	FilesystemStaleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anim_converter_filesystem_stale_errors_total",
			Help: "Stale file handle errors seen on scratch files",
		},
		[]string{"operation"},
	)

	FilesystemRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anim_converter_filesystem_retries_total",
			Help: "Filesystem operations that needed retries, by final result",
		},
		[]string{"operation", "result"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "anim_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
