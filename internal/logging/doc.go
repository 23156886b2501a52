// Package logging builds the structured loggers used by coordinator and
// workers. It wraps log/slog; workers additionally forward their records to
// the coordinator as DBGMSG envelopes through ForwardHandler.
package logging
