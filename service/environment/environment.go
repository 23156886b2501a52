// Package environment defines the hooks a worker runs around spawned tasks:
// once per coordinator session, and before and after every task.
package environment

import (
	"context"

	"github.com/viant/spawnvm/model/identity"
)

// Environment prepares the worker for tasks
type Environment interface {
	// Setup runs the first time a worker sees session
	Setup(ctx context.Context, session string) error
	// Prepare runs before task and returns a handle passed to the task
	Prepare(ctx context.Context, session string, task identity.TaskID) (string, error)
	// Cleanup runs after the task finished, whatever its outcome
	Cleanup(ctx context.Context, handle string) error
}

// Teardown is implemented by environments releasing session resources on exit
type Teardown interface {
	Teardown(ctx context.Context, session string) error
}

// Nop does nothing
type Nop struct{}

// Setup does nothing
func (Nop) Setup(context.Context, string) error { return nil }

// Prepare returns an empty handle
func (Nop) Prepare(context.Context, string, identity.TaskID) (string, error) { return "", nil }

// Cleanup does nothing
func (Nop) Cleanup(context.Context, string) error { return nil }

var _ Environment = Nop{}
