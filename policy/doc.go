// Package policy holds the worker-side rules deciding which functions a
// coordinator may spawn on a slot.
package policy
