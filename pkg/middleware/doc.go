// Package middleware provides HTTP middleware for the API surface:
// Prometheus request metrics and OpenTelemetry tracing.
package middleware
