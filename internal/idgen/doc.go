// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Coordinator sessions are named with it; callers should treat the values as
// opaque strings.
package idgen
