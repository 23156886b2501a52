// Package progress aggregates spawn counters for one coordinator session.
package progress
