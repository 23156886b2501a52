package registry

import (
	"errors"

	"github.com/viant/spawnvm/model/identity"
)

// Idle is the sequence recorded for a slot that runs no task
const Idle int64 = -1

// CoordinatorSlot is the coordinator's own slot; it is busy for the whole session.
const CoordinatorSlot = 0

var (
	// ErrNotCoordinator is returned when coordinator-only operations run on a worker
	ErrNotCoordinator = errors.New("registry: process is not the coordinator")

	// ErrInitialized is returned by a second Initialize call
	ErrInitialized = errors.New("registry: already initialized")
)

// Slot represents one worker process able to run one task at a time
type Slot struct {
	ID   int             `json:"id"`
	Host identity.HostID `json:"host"`
	Seq  int64           `json:"seq"`
	PID  int             `json:"pid"`
}

// IsFree returns true when no task runs on the slot
func (s Slot) IsFree() bool {
	return s.Seq == Idle
}

// HostInfo summarises one host
type HostInfo struct {
	ID        identity.HostID `json:"id"`
	CPUs      int             `json:"cpus"`
	Slots     []int           `json:"slots"`
	FreeSlots []int           `json:"freeSlots"`
}

type host struct {
	id    identity.HostID
	cpus  int
	slots map[int]struct{}
	free  map[int]struct{}
}

func newHost(id identity.HostID) *host {
	return &host{id: id, slots: map[int]struct{}{}, free: map[int]struct{}{}}
}
