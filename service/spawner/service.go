// Package spawner is the coordinator-side API: start functions on free
// slots, exchange messages with them, collect results and shut the pool down.
package spawner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/spawnvm/internal/clock"
	"github.com/viant/spawnvm/internal/idgen"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/progress"
	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/runtime/correlation"
	"github.com/viant/spawnvm/service/multiplexer"
	"github.com/viant/spawnvm/service/registry"
	"github.com/viant/spawnvm/service/transport"
	"github.com/viant/spawnvm/tracing"
)

// ErrFinalized is returned by any call made after Finalize
var ErrFinalized = errors.New("spawner: finalized")

// Service is the coordinator handle
type Service struct {
	transport transport.Transport
	registry  *registry.Registry
	mux       *multiplexer.Multiplexer
	logger    *slog.Logger
	session   string
	progress  *progress.Progress
	backlog   []*multiplexer.Event
	mu        sync.Mutex
	finalized bool
}

// New creates the spawner; t must be the coordinator endpoint
func New(t transport.Transport, options ...Option) (*Service, error) {
	if t.Rank() != registry.CoordinatorSlot {
		return nil, registry.ErrNotCoordinator
	}
	ret := &Service{transport: t, logger: logging.Discard()}
	for _, option := range options {
		option(ret)
	}
	if ret.session == "" {
		ret.session = idgen.NewSession()
	}
	if ret.progress == nil {
		ret.progress = progress.New(ret.session, nil)
	}
	ret.registry = registry.New(t, registry.WithLogger(ret.logger))
	ret.mux = multiplexer.New(t, multiplexer.WithReleaser(ret.registry), multiplexer.WithSink(ret.logger))
	return ret, nil
}

// Initialize discovers the worker pool
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.registry.Initialize(ctx)
}

// Session returns the session id
func (s *Service) Session() string {
	return s.session
}

// Progress returns the session counters
func (s *Service) Progress() *progress.Progress {
	return s.progress
}

// Registry returns the slot registry
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

func (s *Service) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	return nil
}

// Spawn starts function ("service.method") with args on free slots. It
// returns the started tasks, possibly fewer than requested when the pool is
// short. When a send fails the affected slot and all unsent slots are
// released and the error is returned with the tasks already started.
func (s *Service) Spawn(ctx context.Context, function string, args interface{}, options ...SpawnOption) ([]identity.TaskID, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	ref, err := protocol.ParseFunctionRef(function)
	if err != nil {
		return nil, err
	}
	body, err := protocol.EncodeBody(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode args for %v: %w", function, err)
	}
	opts := newSpawnOptions(options)
	ctx, span := tracing.StartSpan(ctx, "spawn "+ref.String(), tracing.KindProducer)
	span.WithInt("requested", int64(opts.count))

	ids := s.registry.Allocate(opts.count, opts.hosts...)
	launched := make([]identity.TaskID, 0, len(ids))
	for i, id := range ids {
		envelope, err := protocol.NewEnvelope(protocol.TagSpawn, &protocol.Spawn{
			Function: ref,
			Args:     body,
			SendBack: opts.sendBack,
			Seq:      id.Seq,
			Session:  s.session,
		})
		if err == nil {
			err = s.transport.Send(ctx, id.Slot, envelope)
		}
		if err != nil {
			for _, unsent := range ids[i:] {
				s.registry.Release(unsent.Slot, unsent.Seq)
			}
			s.record(launched)
			span.WithInt("spawned", int64(len(launched))).End(err)
			return launched, fmt.Errorf("failed to spawn %v on slot %d: %w", ref, id.Slot, err)
		}
		launched = append(launched, id)
	}
	s.record(launched)
	if len(launched) < opts.count {
		s.logger.Debug("partial spawn", "function", ref.String(), "requested", opts.count, "spawned", len(launched))
	}
	span.WithInt("spawned", int64(len(launched))).End(nil)
	return launched, nil
}

func (s *Service) record(launched []identity.TaskID) {
	if len(launched) == 0 {
		return
	}
	s.progress.Update(progress.Delta{Spawned: len(launched), Running: len(launched)})
}

// Receive returns the next result, exit or message from any slot
func (s *Service) Receive(ctx context.Context, timeout time.Duration) (*multiplexer.Event, error) {
	return s.ReceiveFrom(ctx, timeout, transport.AnySource)
}

// ReceiveFrom returns the next result, exit or message from slot
func (s *Service) ReceiveFrom(ctx context.Context, timeout time.Duration, slot int) (*multiplexer.Event, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if event := s.takeBacklog(slot); event != nil {
		return event, nil
	}
	event, err := s.mux.Receive(ctx, timeout, slot)
	if err != nil {
		return nil, err
	}
	s.observe(event)
	return event, nil
}

func (s *Service) observe(event *multiplexer.Event) {
	switch event.Kind {
	case multiplexer.KindResult:
		if !event.Success {
			s.progress.Update(progress.Delta{Failed: 1})
		}
	case multiplexer.KindExit:
		s.progress.Update(progress.Delta{Running: -1, Completed: 1})
	}
}

func (s *Service) takeBacklog(slot int) *multiplexer.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, event := range s.backlog {
		if slot == transport.AnySource || event.Task.Slot == slot {
			s.backlog = append(s.backlog[:i], s.backlog[i+1:]...)
			return event
		}
	}
	return nil
}

// Send delivers body to task dest
func (s *Service) Send(ctx context.Context, dest identity.TaskID, body interface{}) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.mux.Send(ctx, dest, body)
}

// FreeSlots returns free slot ids
func (s *Service) FreeSlots() []int {
	return s.registry.FreeSlots()
}

// UsedSlots returns busy slot ids, including the coordinator's
func (s *Service) UsedSlots() []int {
	return s.registry.UsedSlots()
}

// FreeHosts returns hosts with at least one free slot
func (s *Service) FreeHosts() []identity.HostID {
	return s.registry.FreeHosts()
}

// Hosts returns every host of the pool
func (s *Service) Hosts() []registry.HostInfo {
	return s.registry.Hosts()
}

// SetDebug changes the level at which workers forward log lines; no slots means every worker
func (s *Service) SetDebug(ctx context.Context, level string, slots ...int) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(slots) == 0 {
		for slot := 1; slot < s.transport.Size(); slot++ {
			slots = append(slots, slot)
		}
	}
	envelope, err := protocol.NewEnvelope(protocol.TagSetDebug, &protocol.SetDebug{Level: level})
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if err = s.transport.Send(ctx, slot, envelope); err != nil {
			return err
		}
	}
	return nil
}

// Gather waits until every task in ids exited, or the condition set WithMode
// holds, and returns their outcomes in ids order. Events for other tasks stay
// queued for Receive. A non-negative timeout bounds the whole wait; on expiry
// the partial outcomes are returned with multiplexer.ErrTimeout.
func (s *Service) Gather(ctx context.Context, ids []identity.TaskID, timeout time.Duration, options ...GatherOption) ([]correlation.Outcome, error) {
	opts := newGatherOptions(options)
	group := correlation.NewGroup(idgen.New(), opts.mode, ids)
	deadline := clock.Now().Add(timeout)
	var deferred []*multiplexer.Event
	for _, event := range s.claimBacklog(group) {
		mark(group, event)
	}
	defer func() {
		if len(deferred) > 0 {
			s.mu.Lock()
			s.backlog = append(s.backlog, deferred...)
			s.mu.Unlock()
		}
	}()
	for !group.Done() {
		wait := timeout
		if timeout > 0 {
			if wait = deadline.Sub(clock.Now()); wait <= 0 {
				return group.Outcomes(), multiplexer.ErrTimeout
			}
		}
		if err := s.check(); err != nil {
			return group.Outcomes(), err
		}
		event, err := s.mux.Receive(ctx, wait, transport.AnySource)
		if err != nil {
			return group.Outcomes(), err
		}
		s.observe(event)
		if event.Kind == multiplexer.KindMessage || !group.Contains(event.Task) {
			deferred = append(deferred, event)
			continue
		}
		mark(group, event)
	}
	return group.Outcomes(), nil
}

func mark(group *correlation.Group, event *multiplexer.Event) {
	if event.Kind == multiplexer.KindResult {
		group.MarkResult(event.Task, event.Success, event.Result, event.Error)
		return
	}
	group.MarkExit(event.Task)
}

// claimBacklog removes queued results and exits belonging to group
func (s *Service) claimBacklog(group *correlation.Group) []*multiplexer.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []*multiplexer.Event
	kept := s.backlog[:0]
	for _, event := range s.backlog {
		if event.Kind != multiplexer.KindMessage && group.Contains(event.Task) {
			claimed = append(claimed, event)
			continue
		}
		kept = append(kept, event)
	}
	s.backlog = kept
	return claimed
}

// Finalize tells every worker to exit and closes the transport. Only the
// first call does anything; later calls return ErrFinalized.
func (s *Service) Finalize(ctx context.Context) error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return ErrFinalized
	}
	s.finalized = true
	s.mu.Unlock()

	envelope, err := protocol.NewEnvelope(protocol.TagExit, nil)
	if err != nil {
		return err
	}
	var errs []error
	for slot := 1; slot < s.transport.Size(); slot++ {
		if err = s.transport.Send(ctx, slot, envelope); err != nil {
			errs = append(errs, err)
		}
	}
	if used := s.registry.UsedSlots(); len(used) > 1 {
		s.logger.Warn("finalizing with running tasks", "slots", used[1:])
	}
	snapshot := s.progress.Snapshot()
	s.logger.Info("session finished", "session", s.session, "spawned", snapshot.SpawnedTasks,
		"completed", snapshot.CompletedTasks, "failed", snapshot.FailedTasks)
	if err = s.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
