package spawner

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/spawnvm/extension"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/runtime/correlation"
	"github.com/viant/spawnvm/runtime/task"
	"github.com/viant/spawnvm/service/action/nop"
	"github.com/viant/spawnvm/service/multiplexer"
	"github.com/viant/spawnvm/service/registry"
	"github.com/viant/spawnvm/service/transport"
	"github.com/viant/spawnvm/service/transport/memory"
	"github.com/viant/spawnvm/service/worker"
)

type payload struct {
	Text string `json:"text"`
}

type demo struct{}

func (d *demo) Name() string { return "demo" }

func (d *demo) Methods() types.Signatures {
	return types.Signatures{
		{Name: "fail", Input: reflect.TypeOf(&payload{}), Output: reflect.TypeOf(&payload{})},
		{Name: "upper", Input: reflect.TypeOf(&payload{}), Output: reflect.TypeOf(&payload{})},
		{Name: "relay", Input: reflect.TypeOf(&payload{}), Output: reflect.TypeOf(&payload{})},
	}
}

func (d *demo) Method(name string) (types.Executable, error) {
	switch name {
	case "fail":
		return func(ctx context.Context, in, out interface{}) error {
			return errors.New("raised by task")
		}, nil
	case "upper":
		return func(ctx context.Context, in, out interface{}) error {
			out.(*payload).Text = "[" + in.(*payload).Text + "]"
			return nil
		}, nil
	case "relay":
		return func(ctx context.Context, in, out interface{}) error {
			taskContext := task.FromContext(ctx)
			if err := taskContext.Send(ctx, identity.CoordinatorTask, in); err != nil {
				return err
			}
			event, err := taskContext.Receive(ctx, 5*time.Second)
			if err != nil {
				return err
			}
			return event.Decode(out)
		}, nil
	}
	return nil, types.NewMethodNotFoundError(name)
}

type pool struct {
	spawner *Service
	wg      sync.WaitGroup
	mu      sync.Mutex
	errs    []error
}

func (p *pool) wait(t *testing.T) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.errs)
}

// newPool starts size-1 workers and an initialized spawner; wrap decorates the coordinator endpoint
func newPool(t *testing.T, size int, wrap func(transport.Transport) transport.Transport) *pool {
	world, err := memory.NewWorld(size, memory.DefaultConfig())
	require.NoError(t, err)
	ret := &pool{}
	functions := extension.NewFunctions(nop.New(), &demo{})
	for rank := 1; rank < size; rank++ {
		endpoint, _ := world.Endpoint(rank)
		srv, err := worker.New(endpoint, worker.WithFunctions(functions))
		require.NoError(t, err)
		ret.wg.Add(1)
		go func() {
			defer ret.wg.Done()
			if err := srv.Run(context.Background()); err != nil {
				ret.mu.Lock()
				ret.errs = append(ret.errs, err)
				ret.mu.Unlock()
			}
		}()
	}
	var coordinator transport.Transport
	coordinator, _ = world.Endpoint(0)
	if wrap != nil {
		coordinator = wrap(coordinator)
	}
	ret.spawner, err = New(coordinator, WithSession("session-test"))
	require.NoError(t, err)
	require.NoError(t, ret.spawner.Initialize(context.Background()))
	return ret
}

func TestNew_OnWorker(t *testing.T) {
	world, _ := memory.NewWorld(2, memory.DefaultConfig())
	endpoint, _ := world.Endpoint(1)
	_, err := New(endpoint)
	assert.ErrorIs(t, err, registry.ErrNotCoordinator)
}

func TestService_PartialSpawn(t *testing.T) {
	p := newPool(t, 3, nil)
	ctx := context.Background()
	assert.Equal(t, []int{1, 2}, p.spawner.FreeSlots())

	ids, err := p.spawner.Spawn(ctx, "nop.nop", nil, WithCount(5))
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, 1, ids[0].Slot)
	assert.Equal(t, 2, ids[1].Slot)
	assert.Empty(t, p.spawner.FreeSlots())
	assert.Empty(t, p.spawner.FreeHosts())

	more, err := p.spawner.Spawn(ctx, "nop.nop", nil)
	assert.NoError(t, err)
	assert.Empty(t, more)

	outcomes, err := p.spawner.Gather(ctx, ids, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.True(t, outcome.Reported)
		assert.True(t, outcome.Success)
		assert.True(t, outcome.Exited)
	}
	assert.Equal(t, []int{1, 2}, p.spawner.FreeSlots())
	assert.Equal(t, []int{0}, p.spawner.UsedSlots())
	assert.Len(t, p.spawner.Hosts(), 1)

	snapshot := p.spawner.Progress().Snapshot()
	assert.Equal(t, 2, snapshot.SpawnedTasks)
	assert.Equal(t, 2, snapshot.CompletedTasks)
	assert.Equal(t, 0, snapshot.RunningTasks)

	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}

func TestService_FailingTask(t *testing.T) {
	p := newPool(t, 3, nil)
	ctx := context.Background()

	ids, err := p.spawner.Spawn(ctx, "demo.fail", &payload{Text: "x"}, WithCount(1))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	id := ids[0]

	event, err := p.spawner.Receive(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, multiplexer.KindResult, event.Kind)
	assert.Equal(t, id, event.Task)
	assert.False(t, event.Success)
	assert.Empty(t, event.Result)
	assert.Equal(t, "raised by task", event.Error)
	assert.NotContains(t, p.spawner.FreeSlots(), id.Slot)

	event, err = p.spawner.ReceiveFrom(ctx, 5*time.Second, id.Slot)
	require.NoError(t, err)
	assert.Equal(t, multiplexer.KindExit, event.Kind)
	assert.Equal(t, id, event.Task)
	assert.Contains(t, p.spawner.FreeSlots(), id.Slot)
	assert.Equal(t, 1, p.spawner.Progress().Snapshot().FailedTasks)

	_, err = p.spawner.Receive(ctx, 0)
	assert.ErrorIs(t, err, multiplexer.ErrTimeout)

	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}

func TestService_Messaging(t *testing.T) {
	p := newPool(t, 3, nil)
	ctx := context.Background()

	relay, err := p.spawner.Spawn(ctx, "demo.relay", &payload{Text: "ping"})
	require.NoError(t, err)
	upper, err := p.spawner.Spawn(ctx, "demo.upper", &payload{Text: "abc"}, WithReply(false))
	require.NoError(t, err)
	require.Len(t, upper, 1)

	// the upper task may finish first; its exit must stay queued for Gather
	var message *multiplexer.Event
	for message == nil {
		event, err := p.spawner.Receive(ctx, 5*time.Second)
		require.NoError(t, err)
		if event.Kind == multiplexer.KindMessage {
			message = event
		}
	}
	assert.Equal(t, relay[0], message.Task)
	received := &payload{}
	require.NoError(t, message.Decode(received))
	assert.Equal(t, "ping", received.Text)
	require.NoError(t, p.spawner.Send(ctx, message.Task, &payload{Text: "pong"}))

	outcomes, err := p.spawner.Gather(ctx, relay, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.JSONEq(t, `{"text":"pong"}`, string(outcomes[0].Result))

	// exit of the upper task was either consumed by the loop above or is still pending
	for len(p.spawner.FreeSlots()) < 2 {
		_, err := p.spawner.Receive(ctx, 5*time.Second)
		require.NoError(t, err)
	}
	require.NoError(t, p.spawner.SetDebug(ctx, "DEBUG"))
	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}

func TestService_GatherMode(t *testing.T) {
	p := newPool(t, 3, nil)
	ctx := context.Background()

	relay, err := p.spawner.Spawn(ctx, "demo.relay", &payload{Text: "wait"})
	require.NoError(t, err)
	failing, err := p.spawner.Spawn(ctx, "demo.fail", &payload{Text: "x"})
	require.NoError(t, err)
	ids := append(append([]identity.TaskID{}, relay...), failing...)

	outcomes, err := p.spawner.Gather(ctx, ids, 5*time.Second, WithMode(correlation.ModeAnyError))
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Exited)
	assert.True(t, outcomes[1].Reported)
	assert.False(t, outcomes[1].Success)

	message, err := p.spawner.ReceiveFrom(ctx, 5*time.Second, relay[0].Slot)
	require.NoError(t, err)
	require.Equal(t, multiplexer.KindMessage, message.Kind)
	require.NoError(t, p.spawner.Send(ctx, message.Task, &payload{Text: "done"}))

	outcomes, err = p.spawner.Gather(ctx, relay, 5*time.Second, WithMode(correlation.ModeFirst))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Exited)
	assert.JSONEq(t, `{"text":"done"}`, string(outcomes[0].Result))

	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}

func TestService_FinalizeWithRunningTask(t *testing.T) {
	p := newPool(t, 3, nil)
	ctx := context.Background()
	ids, err := p.spawner.Spawn(ctx, "demo.upper", &payload{Text: "abc"}, WithCount(2))
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}

func TestService_GatherTimeout(t *testing.T) {
	p := newPool(t, 2, nil)
	ctx := context.Background()
	outcomes, err := p.spawner.Gather(ctx, []identity.TaskID{identity.NewTaskID(1, 99)}, 30*time.Millisecond)
	assert.ErrorIs(t, err, multiplexer.ErrTimeout)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Exited)
	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}

func TestService_Finalize(t *testing.T) {
	p := newPool(t, 4, nil)
	ctx := context.Background()
	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)

	assert.ErrorIs(t, p.spawner.Finalize(ctx), ErrFinalized)
	_, err := p.spawner.Spawn(ctx, "nop.nop", nil)
	assert.ErrorIs(t, err, ErrFinalized)
	_, err = p.spawner.Receive(ctx, 0)
	assert.ErrorIs(t, err, ErrFinalized)
	assert.ErrorIs(t, p.spawner.Send(ctx, identity.NewTaskID(1, 1), "x"), ErrFinalized)
	assert.ErrorIs(t, p.spawner.SetDebug(ctx, "INFO"), ErrFinalized)
}

type failingTransport struct {
	transport.Transport
	failSlot int
}

func (f *failingTransport) Send(ctx context.Context, dest int, envelope *protocol.Envelope) error {
	if envelope.Tag == protocol.TagSpawn && dest == f.failSlot {
		return transport.NewError("send", f.Rank(), dest, errors.New("link down"))
	}
	return f.Transport.Send(ctx, dest, envelope)
}

func TestService_SpawnSendFailure(t *testing.T) {
	p := newPool(t, 4, func(t transport.Transport) transport.Transport {
		return &failingTransport{Transport: t, failSlot: 2}
	})
	ctx := context.Background()

	ids, err := p.spawner.Spawn(ctx, "nop.nop", json.RawMessage(`{}`), WithCount(3))
	require.Error(t, err)
	var tErr *transport.Error
	assert.True(t, errors.As(err, &tErr))
	require.Len(t, ids, 1)
	assert.Equal(t, 1, ids[0].Slot)
	assert.Equal(t, []int{2, 3}, p.spawner.FreeSlots())

	_, err = p.spawner.Gather(ctx, ids, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, p.spawner.FreeSlots())
	require.NoError(t, p.spawner.Finalize(ctx))
	p.wait(t)
}
