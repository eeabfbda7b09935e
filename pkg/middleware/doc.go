// Package middleware provides instrumentation for the SacaRolha server:
// Prometheus metrics over HTTP requests, live sessions, and gate
// decisions, and OpenTelemetry tracing of requests and navigations.
package middleware
