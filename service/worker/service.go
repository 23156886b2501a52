// Package worker runs the loop of a non-coordinator participant: answer
// discovery, execute spawned functions one at a time, report results and
// exits, and stop when the coordinator says so.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/viant/spawnvm/extension"
	"github.com/viant/spawnvm/internal/hostinfo"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/policy"
	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/runtime/task"
	"github.com/viant/spawnvm/service/environment"
	"github.com/viant/spawnvm/service/multiplexer"
	"github.com/viant/spawnvm/service/transport"
	"github.com/viant/spawnvm/tracing"
	"github.com/viant/structology/conv"
)

const coordinator = 0

// Service is one worker participant
type Service struct {
	transport   transport.Transport
	functions   *extension.Functions
	environment environment.Environment
	policy      *policy.Policy
	converter   *conv.Converter
	local       *slog.Logger
	logger      *slog.Logger
	level       *slog.LevelVar
	mux         *multiplexer.Multiplexer
	current     int64
	state       int32
	sessions    map[string]bool
}

// New creates a worker bound to a non-zero rank
func New(t transport.Transport, options ...Option) (*Service, error) {
	if t.Rank() == coordinator {
		return nil, ErrCoordinator
	}
	opts := conv.DefaultOptions()
	opts.ClonePointerData = true
	opts.IgnoreUnmapped = true
	opts.AccessUnexported = true
	ret := &Service{
		transport:   t,
		functions:   extension.NewFunctions(),
		environment: environment.Nop{},
		converter:   conv.NewConverter(opts),
		local:       logging.Discard(),
		level:       &slog.LevelVar{},
		current:     identity.BadTaskID().Seq,
		sessions:    map[string]bool{},
	}
	ret.level.Set(slog.LevelInfo)
	for _, option := range options {
		option(ret)
	}
	ret.logger = slog.New(logging.NewForwardHandler(ret.level, ret.forward, ret.local.Handler())).With("slot", t.Rank())
	ret.mux = multiplexer.New(t, multiplexer.WithSelf(ret.Current), multiplexer.WithSink(ret.local))
	return ret, nil
}

// Logger returns the logger forwarding lines to the coordinator
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Current returns the sequence of the running task or -1 when idle
func (s *Service) Current() int64 {
	return atomic.LoadInt64(&s.current)
}

// State returns the loop state
func (s *Service) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Service) forward(ctx context.Context, level slog.Level, text string) error {
	envelope, err := protocol.NewEnvelope(protocol.TagDebugMessage, &protocol.DebugMessage{Level: logging.LevelName(level), Text: text})
	if err != nil {
		return err
	}
	return s.transport.Send(context.WithoutCancel(ctx), coordinator, envelope)
}

// Run processes coordinator messages until EXIT. It returns nil after a
// regular termination and ErrInterrupted when ctx was cancelled.
func (s *Service) Run(ctx context.Context) error {
	for {
		envelope, err := s.transport.Receive(ctx, transport.AnySource)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
			}
			return err
		}
		done, err := s.handle(ctx, envelope)
		if err != nil {
			return err
		}
		if done {
			return s.shutdown(ctx)
		}
	}
}

func (s *Service) handle(ctx context.Context, envelope *protocol.Envelope) (bool, error) {
	switch envelope.Tag {
	case protocol.TagRequestNCPU:
		reply, err := protocol.NewEnvelope(protocol.TagNCPU, hostinfo.Discover())
		if err != nil {
			return false, err
		}
		return false, s.transport.Send(ctx, envelope.Source, reply)
	case protocol.TagSetDebug:
		request := &protocol.SetDebug{}
		if err := envelope.Decode(request); err != nil {
			s.local.Warn("invalid debug request", "error", err)
			return false, nil
		}
		s.level.Set(logging.ParseLevel(request.Level))
		return false, nil
	case protocol.TagSpawn:
		spawn := &protocol.Spawn{}
		if err := envelope.Decode(spawn); err != nil {
			s.local.Warn("invalid spawn request", "error", err)
			return false, nil
		}
		return s.execute(ctx, spawn)
	case protocol.TagExit:
		return true, nil
	}
	s.local.Debug("discarding message while idle", "slot", envelope.Source, "tag", envelope.Tag.String())
	return false, nil
}

// execute runs one task and reports it; it returns true when the
// coordinator requested termination while the task was running.
func (s *Service) execute(ctx context.Context, spawn *protocol.Spawn) (bool, error) {
	id := identity.NewTaskID(s.transport.Rank(), spawn.Seq)
	atomic.StoreInt64(&s.current, spawn.Seq)
	atomic.StoreInt32(&s.state, int32(StateExecuting))
	defer func() {
		atomic.StoreInt64(&s.current, identity.BadTaskID().Seq)
		atomic.StoreInt32(&s.state, int32(StateIdle))
	}()

	spanCtx, span := tracing.StartSpan(ctx, "task "+spawn.Function.String(), tracing.KindConsumer)
	span.WithAttributes(map[string]string{"task": id.String(), "session": spawn.Session})
	result, runErr := s.run(spanCtx, id, spawn)
	if ctx.Err() != nil {
		span.End(ctx.Err())
		return false, fmt.Errorf("%w: task %v: %v", ErrInterrupted, id, ctx.Err())
	}
	span.End(runErr)
	if runErr != nil {
		s.logger.Warn("task failed", "task", id.String(), "function", spawn.Function.String(), "error", runErr)
	}
	if spawn.SendBack {
		retval := &protocol.TaskRetval{Seq: spawn.Seq, Success: runErr == nil, Result: result}
		if runErr != nil {
			retval.Error = runErr.Error()
		}
		if err := s.report(ctx, protocol.TagTaskRetval, retval); err != nil {
			return s.unreported(id, err)
		}
	}
	if err := s.report(ctx, protocol.TagTaskExit, &protocol.TaskExit{Seq: spawn.Seq}); err != nil {
		return s.unreported(id, err)
	}
	return s.mux.Terminated(), nil
}

// unreported handles a failed report; a closed endpoint means the coordinator
// finalized while the task ran, so the worker terminates.
func (s *Service) unreported(id identity.TaskID, err error) (bool, error) {
	if !errors.Is(err, transport.ErrClosed) {
		return false, err
	}
	s.local.Warn("coordinator closed before task was reported", "task", id.String(), "error", err)
	return true, nil
}

func (s *Service) report(ctx context.Context, tag protocol.Tag, payload interface{}) error {
	envelope, err := protocol.NewEnvelope(tag, payload)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, coordinator, envelope)
}

func (s *Service) run(ctx context.Context, id identity.TaskID, spawn *protocol.Spawn) (json.RawMessage, error) {
	if !s.sessions[spawn.Session] {
		if err := s.environment.Setup(ctx, spawn.Session); err != nil {
			return nil, fmt.Errorf("failed to set up session %v: %w", spawn.Session, err)
		}
		s.sessions[spawn.Session] = true
	}
	handle, err := s.environment.Prepare(ctx, spawn.Session, id)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare task %v: %w", id, err)
	}
	defer func() {
		if cErr := s.environment.Cleanup(context.WithoutCancel(ctx), handle); cErr != nil {
			s.logger.Warn("task cleanup failed", "task", id.String(), "error", cErr)
		}
	}()
	function, err := s.functions.Resolve(spawn.Function)
	if err != nil {
		return nil, err
	}
	if err = s.policy.Check(ctx, function.Ref.String(), spawn.Args); err != nil {
		return nil, err
	}
	input, err := s.input(function.Signature, spawn.Args)
	if err != nil {
		return nil, err
	}
	output := function.Signature.NewOutput()
	taskContext := task.New(id, spawn.Session, handle, s.logger.With("task", id.String()), s.mux)
	if err = s.guard(task.WithContext(ctx, taskContext), function.Executable, input, output); err != nil {
		return nil, err
	}
	return protocol.EncodeBody(output)
}

func (s *Service) input(signature *types.Signature, args json.RawMessage) (interface{}, error) {
	input := signature.NewInput()
	if len(args) == 0 || string(args) == "null" {
		return input, nil
	}
	var value interface{}
	if err := json.Unmarshal(args, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if err := s.converter.Convert(value, input); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	return input, nil
}

// guard turns panics into task failures, except Abort which is re-raised
func (s *Service) guard(ctx context.Context, executable types.Executable, input, output interface{}) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch actual := r.(type) {
		case Abort, *Abort:
			panic(actual)
		case error:
			err = fmt.Errorf("task panicked: %w", actual)
		default:
			err = fmt.Errorf("task panicked: %v", actual)
		}
	}()
	return executable(ctx, input, output)
}

func (s *Service) shutdown(ctx context.Context) error {
	atomic.StoreInt32(&s.state, int32(StateTerminated))
	if teardown, ok := s.environment.(environment.Teardown); ok {
		for session := range s.sessions {
			if err := teardown.Teardown(ctx, session); err != nil {
				s.local.Warn("session teardown failed", "session", session, "error", err)
			}
		}
	}
	return s.transport.Close()
}
