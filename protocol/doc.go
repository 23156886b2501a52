// Package protocol defines the wire-level message kinds exchanged between the
// coordinator and the workers. Every envelope is a (tag, source, payload)
// triple; the payload layout depends on the tag and is encoded as JSON.
package protocol
