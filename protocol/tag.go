package protocol

import "strconv"

// Tag discriminates message kinds on the wire. Values are part of the wire
// format and must not be renumbered.
type Tag int

const (
	TagRequestNCPU  Tag = 1 // spawner -> worker, discovery request
	TagNCPU         Tag = 2 // worker -> spawner, discovery reply
	TagSpawn        Tag = 3 // spawner -> worker, launch request
	TagTaskRetval   Tag = 4 // worker -> spawner, task outcome
	TagTaskExit     Tag = 5 // worker -> spawner, slot is free again
	TagSetDebug     Tag = 6 // spawner -> worker, verbosity
	TagDebugMessage Tag = 7 // worker -> spawner, forwarded log line
	TagExit         Tag = 8 // spawner -> worker, terminate the worker loop
	TagMessage      Tag = 9 // application payload, any direction
)

var tagNames = map[Tag]string{
	TagRequestNCPU:  "REQUEST_NCPU",
	TagNCPU:         "NCPU",
	TagSpawn:        "SPAWN",
	TagTaskRetval:   "TASK_RETVAL",
	TagTaskExit:     "TASK_EXIT",
	TagSetDebug:     "SET_DEBUG",
	TagDebugMessage: "DBGMSG",
	TagExit:         "EXIT",
	TagMessage:      "MESSAGE",
}

// IsValid returns true for known tags
func (t Tag) IsValid() bool {
	_, ok := tagNames[t]
	return ok
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "TAG(" + strconv.Itoa(int(t)) + ")"
}
