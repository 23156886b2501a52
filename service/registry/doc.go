// Package registry keeps the coordinator's view of the worker pool: which
// slot lives on which host, which slots are free and which run a task. The
// snapshot is built once by a discovery round-trip and then updated
// incrementally by Allocate and Release; it is never rebuilt.
package registry
