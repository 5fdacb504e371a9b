package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RequestIDHeader carries the conversion request ID. Handlers set it so an
// access log line can be matched with the "[req <id>]" lines of the same
// conversion.
const RequestIDHeader = "X-Request-ID"

// accessLogFields is the W3C extended log field list, in output order.
const accessLogFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status cs-bytes sc-bytes time-taken sc(Content-Type) cs(User-Agent) sc(X-Request-ID)"

// responseWriter records the status and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps artifact delivery incremental through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig holds configuration for the access log middleware.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths []string
	// LogHealthChecks controls logging of probe endpoints.
	LogHealthChecks bool
}

// DefaultLoggingConfig skips /metrics and logs everything else.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger writes one W3C extended format line per request. See
// accessLogFields for the columns.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			//nolint:gosec // G706: every client-supplied field goes through w3cValue.
			log.Println(accessLine(r, wrapped, start, time.Now().UTC()))
		})
	}
}

func accessLine(r *http.Request, rw *responseWriter, start, now time.Time) string {
	fields := []string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		w3cValue(getClientIP(r)),
		w3cValue(r.Method),
		w3cValue(r.URL.Path),
		w3cValue(r.URL.RawQuery),
		strconv.Itoa(rw.statusCode),
		// Declared upload size, -1 when the client streamed without a length
		strconv.FormatInt(r.ContentLength, 10),
		strconv.FormatInt(rw.bytesWritten, 10),
		strconv.FormatInt(now.Sub(start).Milliseconds(), 10),
		w3cValue(rw.Header().Get("Content-Type")),
		w3cValue(r.Header.Get("User-Agent")),
		w3cValue(rw.Header().Get(RequestIDHeader)),
	}
	return strings.Join(fields, " ")
}

// w3cValue sanitizes and quotes a field; empty values become "-".
func w3cValue(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return escapeW3CField(s)
}

// sanitizeLogField strips control characters so a client cannot forge log
// lines. Newlines become spaces; ESC, NUL and other C0 codes except tab are
// dropped.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		default:
			return r
		}
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	return hasAnyPrefix(path, config.SkipPaths) || (!config.LogHealthChecks && healthCheckPaths[path])
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection address without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// escapeW3CField quotes a field containing whitespace or quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
