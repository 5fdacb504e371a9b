// Package middleware provides HTTP middleware for the conversion service.
//
// It includes:
//   - Request logging in W3C Extended Log Format, ending with the
//     X-Request-ID the conversion handlers set
//   - Prometheus request metrics with bounded path labels
//   - Permissive CORS with preflight handling
package middleware
