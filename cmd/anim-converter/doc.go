// Package main provides the entry point for the anim-converter service.
//
// anim-converter turns an uploaded video or image sequence into an animated
// GIF or a transparent video (AVI or WebM) by driving ffmpeg, and streams the
// result back in the same HTTP response. Nothing is kept after a request:
// uploads, staged frames, palettes and the artifact all live in a
// per-request scratch namespace that is removed once the response is sent.
//
// # Application Lifecycle
//
//  1. Memory Limit: Sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  2. Configuration Loading: Reads environment variables (and CONFIG_FILE, if
//     set) and checks SCRATCH_DIR
//  3. Scratch Sweep: Removes leftovers older than STALE_SCRATCH_AGE from a
//     previous run, unless another replica holds the sweep lock
//  4. Engine Discovery: Locates ffmpeg and lists its encoders to pick alpha codecs
//  5. Component Initialization:
//     - Converter: Bounded by CONVERT_WORKERS concurrent conversions
//     - Metrics Collector: Samples scratch usage every minute
//  6. HTTP Server Setup: Configures routes, middleware, and starts server
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - POST /convert and POST /convert/frames
//     - /health, /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Graceful Shutdown
//
//  1. Stop metrics collector
//  2. Shutdown main HTTP server (30s timeout)
//  3. Kill ffmpeg processes still running
//  4. Shutdown metrics server
//
// # Related Packages
//
//   - [anim-converter/internal/converter]: Request validation and pipeline
//   - [anim-converter/internal/encoder]: ffmpeg planning and execution
//   - [anim-converter/internal/handlers]: HTTP request handlers
//   - [anim-converter/internal/startup]: Configuration and initialization
//   - [anim-converter/internal/workspace]: Per-request scratch files
package main
