// Package metrics provides Prometheus instrumentation for the animation converter.
//
// All metrics are prefixed with "anim_converter_" and registered with the
// default registry through promauto. Mount promhttp.Handler() on the metrics
// server to expose them.
//
// # Metric Categories
//
//   - HTTP: request counts, latency, in-flight requests, uploaded bytes
//   - Conversion: outcomes by format and failure stage, duration, artifact
//     sizes, staged frame counts, dropped transparency, delivery failures
//   - Encoder: per-stage ffmpeg duration and status, running processes
//   - Scratch space: released paths, cleanup errors, current usage
//
// Observers in this package adapt the encoder and workspace event interfaces
// onto these metrics, and [Collector] samples scratch usage periodically.
//
// # Prometheus Queries
//
// Failure rate by stage:
//
//	sum(rate(anim_converter_conversions_total{status!="success"}[5m])) by (status)
//
// P95 palette application time:
//
//	histogram_quantile(0.95, sum(rate(anim_converter_encode_stage_duration_seconds_bucket{stage="paletteuse"}[5m])) by (le))
//
// Leaked scratch space (should stay near zero between requests):
//
//	anim_converter_scratch_bytes
package metrics
