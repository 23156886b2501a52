// Package tracing wraps OpenTelemetry so spawner and worker code can open
// spans without importing the SDK.
package tracing
