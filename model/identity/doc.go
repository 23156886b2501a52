// Package identity defines the identifiers shared by the coordinator and the
// workers: HostID names a physical or logical host, TaskID names one spawned
// unit of work as a (slot, sequence) pair.
package identity
