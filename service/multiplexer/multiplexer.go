// Package multiplexer demultiplexes the single tag-addressed channel into
// typed events. Control traffic (debug lines, termination, slot release) is
// handled in place; only results, exits and addressed messages reach callers.
package multiplexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/service/transport"
)

var (
	// ErrTimeout is returned when no event arrived within the timeout
	ErrTimeout = errors.New("multiplexer: receive timeout")

	// ErrTerminated is returned once the coordinator requested termination
	ErrTerminated = errors.New("multiplexer: terminated")

	// ErrInvalidDestination is returned by Send for a bad task id
	ErrInvalidDestination = errors.New("multiplexer: invalid destination")
)

// Releaser frees a slot on task exit
type Releaser interface {
	Release(slot int, seq int64) bool
}

// Option customises the multiplexer
type Option func(m *Multiplexer)

// WithReleaser sets the registry updated on TASK_EXIT
func WithReleaser(releaser Releaser) Option {
	return func(m *Multiplexer) {
		m.releaser = releaser
	}
}

// WithSelf sets the function returning the sequence messages are addressed to
func WithSelf(self func() int64) Option {
	return func(m *Multiplexer) {
		m.self = self
	}
}

// WithSink sets the logger receiving forwarded debug lines
func WithSink(logger *slog.Logger) Option {
	return func(m *Multiplexer) {
		m.sink = logger
	}
}

// Multiplexer filters incoming envelopes
type Multiplexer struct {
	transport  transport.Transport
	releaser   Releaser
	self       func() int64
	sink       *slog.Logger
	terminated int32
}

// New creates a multiplexer
func New(t transport.Transport, options ...Option) *Multiplexer {
	ret := &Multiplexer{
		transport: t,
		self:      func() int64 { return identity.CoordinatorTask.Seq },
		sink:      logging.Discard(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Terminated returns true once EXIT was received
func (m *Multiplexer) Terminated() bool {
	return atomic.LoadInt32(&m.terminated) == 1
}

// Receive returns the next event from source (or transport.AnySource).
// A negative timeout blocks until an event arrives or ctx is done, zero
// probes the transport exactly once, positive waits up to timeout.
func (m *Multiplexer) Receive(ctx context.Context, timeout time.Duration, source int) (*Event, error) {
	if m.Terminated() {
		return nil, ErrTerminated
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	probed := false
	for {
		envelope, err := m.next(ctx, waitCtx, timeout, source, &probed)
		if err != nil {
			return nil, err
		}
		event, err := m.dispatch(ctx, envelope)
		if err != nil || event != nil {
			return event, err
		}
	}
}

func (m *Multiplexer) next(ctx, waitCtx context.Context, timeout time.Duration, source int, probed *bool) (*protocol.Envelope, error) {
	if timeout == 0 {
		if *probed {
			return nil, ErrTimeout
		}
		*probed = true
		envelope, ok, err := m.transport.TryReceive(ctx, source)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTimeout
		}
		return envelope, nil
	}
	envelope, err := m.transport.Receive(waitCtx, source)
	if err != nil && timeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return envelope, err
}

func (m *Multiplexer) dispatch(ctx context.Context, envelope *protocol.Envelope) (*Event, error) {
	switch envelope.Tag {
	case protocol.TagDebugMessage:
		msg := &protocol.DebugMessage{}
		if err := envelope.Decode(msg); err != nil {
			return nil, fmt.Errorf("invalid debug message from slot %d: %w", envelope.Source, err)
		}
		m.sink.Log(ctx, logging.ParseLevel(msg.Level), msg.Text, "slot", envelope.Source)
		return nil, nil
	case protocol.TagExit:
		atomic.StoreInt32(&m.terminated, 1)
		return nil, ErrTerminated
	case protocol.TagTaskExit:
		exit := &protocol.TaskExit{}
		if err := envelope.Decode(exit); err != nil {
			return nil, fmt.Errorf("invalid task exit from slot %d: %w", envelope.Source, err)
		}
		if m.releaser != nil && !m.releaser.Release(envelope.Source, exit.Seq) {
			m.sink.Debug("ignoring stale task exit", "slot", envelope.Source, "seq", exit.Seq)
		}
		return &Event{Kind: KindExit, Task: identity.NewTaskID(envelope.Source, exit.Seq)}, nil
	case protocol.TagTaskRetval:
		retval := &protocol.TaskRetval{}
		if err := envelope.Decode(retval); err != nil {
			return nil, fmt.Errorf("invalid task result from slot %d: %w", envelope.Source, err)
		}
		return &Event{
			Kind:    KindResult,
			Task:    identity.NewTaskID(envelope.Source, retval.Seq),
			Success: retval.Success,
			Result:  retval.Result,
			Error:   retval.Error,
		}, nil
	case protocol.TagMessage:
		msg := &protocol.Message{}
		if err := envelope.Decode(msg); err != nil {
			return nil, fmt.Errorf("invalid message from slot %d: %w", envelope.Source, err)
		}
		if msg.To != m.self() {
			m.sink.Debug("discarding message for another task", "slot", envelope.Source, "to", msg.To)
			return nil, nil
		}
		return &Event{Kind: KindMessage, Task: identity.NewTaskID(envelope.Source, msg.From), Body: msg.Body}, nil
	}
	m.sink.Debug("discarding message", "slot", envelope.Source, "tag", envelope.Tag.String())
	return nil, nil
}

// Send delivers body to the task dest
func (m *Multiplexer) Send(ctx context.Context, dest identity.TaskID, body interface{}) error {
	if !dest.IsValid() {
		return ErrInvalidDestination
	}
	data, err := protocol.EncodeBody(body)
	if err != nil {
		return err
	}
	envelope, err := protocol.NewEnvelope(protocol.TagMessage, &protocol.Message{From: m.self(), To: dest.Seq, Body: data})
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, dest.Slot, envelope)
}
