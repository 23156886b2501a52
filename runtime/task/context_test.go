package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/service/multiplexer"
	"github.com/viant/spawnvm/service/transport/memory"
)

func TestContext_Messaging(t *testing.T) {
	world, err := memory.NewWorld(2, memory.DefaultConfig())
	require.NoError(t, err)
	coordinator, _ := world.Endpoint(0)
	worker, _ := world.Endpoint(1)
	ctx := context.Background()

	id := identity.NewTaskID(1, 3)
	taskContext := New(id, "session-1", "mem://localhost/work/1", nil, multiplexer.New(worker, multiplexer.WithSelf(func() int64 { return id.Seq })))
	assert.NotNil(t, taskContext.Logger)
	require.NoError(t, taskContext.Send(ctx, identity.CoordinatorTask, "ready"))

	parent := multiplexer.New(coordinator)
	event, err := parent.Receive(ctx, time.Second, 1)
	require.NoError(t, err)
	assert.Equal(t, id, event.Task)
	require.NoError(t, parent.Send(ctx, event.Task, "go"))

	event, err = taskContext.Receive(ctx, time.Second)
	require.NoError(t, err)
	var body string
	require.NoError(t, event.Decode(&body))
	assert.Equal(t, "go", body)

	_, err = taskContext.ReceiveFrom(ctx, 0, 0)
	assert.ErrorIs(t, err, multiplexer.ErrTimeout)
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	taskContext := New(identity.NewTaskID(2, 1), "s", "", nil, nil)
	ctx := WithContext(context.Background(), taskContext)
	assert.Same(t, taskContext, FromContext(ctx))
}
