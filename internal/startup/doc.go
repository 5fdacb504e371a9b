// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded from environment variables via [LoadConfig].
// Invalid values fall back to their defaults with a warning; values with no
// safe fallback fail [Config.Validate].
//
// CONFIG_FILE may name a flat TOML file whose keys are the variable names in
// lower case. File values apply only where the environment leaves a
// variable unset:
//
//	port = "8080"
//	max_upload_size = "100MiB"
//	stage_timeout = "2m"
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - SCRATCH_DIR: Base directory for per-request temporary files
//     (default: $TMPDIR/anim-converter)
//   - STALE_SCRATCH_AGE: Age after which leftovers are swept at startup (default: 1h)
//   - FFMPEG_PATH / FFPROBE_PATH: Engine binaries (default: ffmpeg / ffprobe)
//   - STAGE_TIMEOUT: Per-stage ffmpeg timeout as Go duration (default: 5m)
//   - MAX_UPLOAD_SIZE: Per-file upload limit, e.g. 50MiB (default: 50MiB)
//   - MAX_FRAMES: Maximum frames per request (default: 1000)
//   - OUTPUT_SIZE: Square canvas edge for video input (default: 300)
//   - DEFAULT_FPS: Frame rate for video input when none is given (default: 30)
//   - CONVERT_WORKERS: Concurrent conversions (default: one per CPU, environment only)
//   - TRANSPARENCY_COLOR: Sentinel colour reserved for transparency (default: ff00ff)
//   - ALPHA_THRESHOLD: Alpha cut-off for transparent pixels (default: 128)
//   - LOG_LEVEL: Logging level: debug, info, warn, error (default: info, environment only)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogEngineInit], [LogEngineCapabilities]: ffmpeg availability and codecs
//   - [LogScratchSweep]: leftovers removed at startup
//   - [LogHTTPRoutes]: registered HTTP routes (debug level)
//   - [LogServerStarted]: server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: graceful shutdown
package startup
