// Package task exposes the running task's identity and messaging to
// function code executing on a worker.
package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/service/multiplexer"
	"github.com/viant/spawnvm/service/transport"
)

// Messenger sends and receives application messages for a task
type Messenger interface {
	Send(ctx context.Context, dest identity.TaskID, body interface{}) error
	Receive(ctx context.Context, timeout time.Duration, source int) (*multiplexer.Event, error)
}

// Context describes the task being executed
type Context struct {
	ID      identity.TaskID
	Session string
	// Handle is what the environment prepared for the task, e.g. a scratch directory URL
	Handle    string
	Logger    *slog.Logger
	messenger Messenger
}

// New creates a task context
func New(id identity.TaskID, session, handle string, logger *slog.Logger, messenger Messenger) *Context {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Context{ID: id, Session: session, Handle: handle, Logger: logger, messenger: messenger}
}

// Send sends body to dest; the coordinator is identity.CoordinatorTask
func (c *Context) Send(ctx context.Context, dest identity.TaskID, body interface{}) error {
	return c.messenger.Send(ctx, dest, body)
}

// Receive waits for a message addressed to this task from any slot
func (c *Context) Receive(ctx context.Context, timeout time.Duration) (*multiplexer.Event, error) {
	return c.messenger.Receive(ctx, timeout, transport.AnySource)
}

// ReceiveFrom waits for a message from slot
func (c *Context) ReceiveFrom(ctx context.Context, timeout time.Duration, slot int) (*multiplexer.Event, error) {
	return c.messenger.Receive(ctx, timeout, slot)
}

type contextKey struct{}

// WithContext embeds the task context in ctx
func WithContext(ctx context.Context, taskContext *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, taskContext)
}

// FromContext returns the task context or nil outside of a task
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	ret, _ := ctx.Value(contextKey{}).(*Context)
	return ret
}
