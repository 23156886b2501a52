package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/viant/spawnvm/internal/hostinfo"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/service/transport"
)

// Option customises the registry
type Option func(r *Registry)

// WithLogger sets the logger receiving discovery diagnostics and forwarded worker lines
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry tracks slots, hosts and their availability
type Registry struct {
	transport   transport.Transport
	logger      *slog.Logger
	mux         sync.Mutex
	initialized bool
	slots       map[int]*Slot
	hosts       map[identity.HostID]*host
	free        map[int]struct{}
	used        map[int]struct{}
	freeHosts   map[identity.HostID]struct{}
	nextSeq     int64
}

// New creates an empty registry bound to the coordinator transport
func New(t transport.Transport, options ...Option) *Registry {
	ret := &Registry{
		transport: t,
		logger:    logging.Discard(),
		slots:     map[int]*Slot{},
		hosts:     map[identity.HostID]*host{},
		free:      map[int]struct{}{},
		used:      map[int]struct{}{},
		freeHosts: map[identity.HostID]struct{}{},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

type discovered struct {
	slot int
	info protocol.NCPU
}

// Initialize registers the coordinator's own slot as busy, asks every worker
// for its host and CPU count and blocks until all of them replied.
func (r *Registry) Initialize(ctx context.Context) error {
	if r.transport == nil || r.transport.Rank() != CoordinatorSlot {
		return ErrNotCoordinator
	}
	r.mux.Lock()
	initialized := r.initialized
	r.mux.Unlock()
	if initialized {
		return ErrInitialized
	}

	replies, err := r.discover(ctx)
	if err != nil {
		return err
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	local := hostinfo.Discover()
	r.add(CoordinatorSlot, identity.NewHostID(local.HostName), local.CPUCount, local.PID)
	r.markBusy(CoordinatorSlot, 0)
	for _, reply := range replies {
		r.add(reply.slot, identity.NewHostID(reply.info.HostName), reply.info.CPUCount, reply.info.PID)
	}
	r.initialized = true
	r.logger.Info("registry initialized", "slots", len(r.slots), "hosts", len(r.hosts), "free", len(r.free))
	return nil
}

func (r *Registry) discover(ctx context.Context) ([]discovered, error) {
	size := r.transport.Size()
	request, err := protocol.NewEnvelope(protocol.TagRequestNCPU, nil)
	if err != nil {
		return nil, err
	}
	pending := map[int]bool{}
	for rank := 1; rank < size; rank++ {
		if err = r.transport.Send(ctx, rank, request); err != nil {
			return nil, fmt.Errorf("failed to request discovery from slot %d: %w", rank, err)
		}
		pending[rank] = true
	}
	replies := make([]discovered, 0, len(pending))
	for len(pending) > 0 {
		envelope, err := r.transport.Receive(ctx, transport.AnySource)
		if err != nil {
			return nil, fmt.Errorf("discovery interrupted with %d replies pending: %w", len(pending), err)
		}
		switch envelope.Tag {
		case protocol.TagNCPU:
			if !pending[envelope.Source] {
				r.logger.Debug("ignoring duplicate discovery reply", "slot", envelope.Source)
				continue
			}
			reply := discovered{slot: envelope.Source}
			if err = envelope.Decode(&reply.info); err != nil {
				return nil, err
			}
			delete(pending, envelope.Source)
			replies = append(replies, reply)
		case protocol.TagDebugMessage:
			msg := &protocol.DebugMessage{}
			if envelope.Decode(msg) == nil {
				r.logger.Info(msg.Text, "slot", envelope.Source, "forwarded", true)
			}
		default:
			r.logger.Debug("dropping message during discovery", "slot", envelope.Source, "tag", envelope.Tag.String())
		}
	}
	return replies, nil
}

// Initialized returns true once the snapshot was built
func (r *Registry) Initialized() bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.initialized
}

// add registers an idle slot; the caller holds the lock
func (r *Registry) add(id int, hostID identity.HostID, cpus, pid int) {
	h, ok := r.hosts[hostID]
	if !ok {
		h = newHost(hostID)
		r.hosts[hostID] = h
	}
	if cpus > h.cpus {
		h.cpus = cpus
	}
	h.slots[id] = struct{}{}
	r.slots[id] = &Slot{ID: id, Host: hostID, Seq: Idle, PID: pid}
	r.markFree(id)
}

func (r *Registry) markBusy(id int, seq int64) {
	slot := r.slots[id]
	slot.Seq = seq
	delete(r.free, id)
	r.used[id] = struct{}{}
	h := r.hosts[slot.Host]
	delete(h.free, id)
	if len(h.free) == 0 {
		delete(r.freeHosts, slot.Host)
	}
}

func (r *Registry) markFree(id int) {
	slot := r.slots[id]
	slot.Seq = Idle
	delete(r.used, id)
	r.free[id] = struct{}{}
	r.hosts[slot.Host].free[id] = struct{}{}
	r.freeHosts[slot.Host] = struct{}{}
}

// Allocate marks up to count free slots busy, restricted to hosts when given,
// and assigns each a fresh sequence. It returns fewer tasks than requested
// when capacity is short; it never blocks and never fails.
func (r *Registry) Allocate(count int, hosts ...identity.HostID) []identity.TaskID {
	if count <= 0 {
		return nil
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	var filter map[identity.HostID]bool
	if len(hosts) > 0 {
		filter = make(map[identity.HostID]bool, len(hosts))
		for _, h := range hosts {
			filter[h] = true
		}
	}
	var result []identity.TaskID
	for _, id := range sortedSlots(r.free) {
		if len(result) == count {
			break
		}
		if filter != nil && !filter[r.slots[id].Host] {
			continue
		}
		r.nextSeq++
		r.markBusy(id, r.nextSeq)
		result = append(result, identity.NewTaskID(id, r.nextSeq))
	}
	return result
}

// Release frees slot when its recorded sequence equals seq. A mismatch (stale
// or duplicate exit notification) is ignored; the return value reports
// whether the slot was freed.
func (r *Registry) Release(slot int, seq int64) bool {
	if slot == CoordinatorSlot {
		return false
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	s, ok := r.slots[slot]
	if !ok || s.IsFree() || s.Seq != seq {
		return false
	}
	r.markFree(slot)
	return true
}

// FreeSlots returns ids of free slots in ascending order
func (r *Registry) FreeSlots() []int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return sortedSlots(r.free)
}

// UsedSlots returns ids of busy slots in ascending order
func (r *Registry) UsedSlots() []int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return sortedSlots(r.used)
}

// FreeHosts returns hosts with at least one free slot, sorted by name
func (r *Registry) FreeHosts() []identity.HostID {
	r.mux.Lock()
	defer r.mux.Unlock()
	result := make([]identity.HostID, 0, len(r.freeHosts))
	for id := range r.freeHosts {
		result = append(result, id)
	}
	sortHosts(result)
	return result
}

// Hosts returns every known host with its slots
func (r *Registry) Hosts() []HostInfo {
	r.mux.Lock()
	defer r.mux.Unlock()
	result := make([]HostInfo, 0, len(r.hosts))
	for id, h := range r.hosts {
		result = append(result, HostInfo{ID: id, CPUs: h.cpus, Slots: sortedSlots(h.slots), FreeSlots: sortedSlots(h.free)})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.Name() < result[j].ID.Name() })
	return result
}

// Slot returns a copy of slot id
func (r *Registry) Slot(id int) (Slot, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// HostOf returns the host owning slot id or the bad host
func (r *Registry) HostOf(id int) identity.HostID {
	if s, ok := r.Slot(id); ok {
		return s.Host
	}
	return identity.BadHostID()
}

// Size returns number of registered slots
func (r *Registry) Size() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.slots)
}

func sortedSlots(set map[int]struct{}) []int {
	result := make([]int, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}

func sortHosts(hosts []identity.HostID) {
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name() < hosts[j].Name() })
}
