// Package extension provides the run-time registry of task functions a
// worker can execute. Spawn requests name a function as service.method; the
// registry resolves that reference to an executable with a typed signature.
package extension
