package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"anim-converter/internal/metrics"
)

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// SkipPaths are path prefixes left out of the HTTP metrics.
	SkipPaths []string
}

// DefaultMetricsConfig leaves probes and the scrape endpoint unrecorded.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics records request counts, latencies and in-flight requests.
// Latency covers the whole conversion and artifact delivery.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasAnyPrefix(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

var knownPaths = map[string]bool{
	"/convert":        true,
	"/convert/frames": true,
	"/version":        true,
}

// normalizePath maps anything outside knownPaths to "other" to bound label
// cardinality.
func normalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	switch {
	case path == "":
		return "/"
	case knownPaths[path]:
		return path
	default:
		return "other"
	}
}
