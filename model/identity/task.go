package identity

import (
	"encoding/binary"
	"hash/fnv"
	"strconv"
)

// TaskID identifies a spawned unit of work. Slot is the worker's transport
// address, Seq the sequence number assigned by the coordinator at spawn time.
// A TaskID is valid iff Slot >= 0.
type TaskID struct {
	Slot int   `json:"slot"`
	Seq  int64 `json:"seq"`
}

// CoordinatorTask identifies application code running on the coordinator.
var CoordinatorTask = TaskID{Slot: 0, Seq: 0}

// NewTaskID creates a task identity
func NewTaskID(slot int, seq int64) TaskID {
	return TaskID{Slot: slot, Seq: seq}
}

// BadTaskID returns the distinguished invalid task.
func BadTaskID() TaskID {
	return TaskID{Slot: -1, Seq: -1}
}

// IsValid returns true when the task has a non-negative slot
func (t TaskID) IsValid() bool {
	return t.Slot >= 0
}

// Equal requires both slot and sequence to match
func (t TaskID) Equal(other TaskID) bool {
	return t.Slot == other.Slot && t.Seq == other.Seq
}

// Hash returns a 64-bit FNV-1a hash over both fields.
func (t TaskID) Hash() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(int64(t.Slot)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(t.Seq))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func (t TaskID) String() string {
	if !t.IsValid() {
		return "bad-task"
	}
	return strconv.Itoa(t.Slot) + ":" + strconv.FormatInt(t.Seq, 10)
}
