package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FunctionRef names a registered task function as service and method.
type FunctionRef struct {
	Service string `json:"service"`
	Method  string `json:"method"`
}

// ParseFunctionRef parses "service.method"; the method is taken after the last dot.
func ParseFunctionRef(ref string) (FunctionRef, error) {
	idx := strings.LastIndex(ref, ".")
	if idx <= 0 || idx == len(ref)-1 {
		return FunctionRef{}, fmt.Errorf("invalid function reference %q, expected service.method", ref)
	}
	return FunctionRef{Service: ref[:idx], Method: ref[idx+1:]}, nil
}

func (f FunctionRef) String() string {
	return f.Service + "." + f.Method
}

// NCPU is the discovery reply
type NCPU struct {
	CPUCount int    `json:"cpuCount"`
	HostName string `json:"hostName"`
	PID      int    `json:"pid"`
}

// Spawn asks a worker to run one task
type Spawn struct {
	Function FunctionRef     `json:"function"`
	Args     json.RawMessage `json:"args,omitempty"`
	SendBack bool            `json:"sendBack"`
	Seq      int64           `json:"seq"`
	Session  string          `json:"session,omitempty"`
}

// TaskRetval reports a finished task. Result is empty when Success is false.
type TaskRetval struct {
	Seq     int64           `json:"seq"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// TaskExit reports that the slot running Seq is free
type TaskExit struct {
	Seq int64 `json:"seq"`
}

// SetDebug adjusts worker verbosity
type SetDebug struct {
	Level string `json:"level"`
}

// DebugMessage carries a forwarded worker log line
type DebugMessage struct {
	Level string `json:"level,omitempty"`
	Text  string `json:"text"`
}

// Message is an application payload addressed from one task sequence to another.
type Message struct {
	From int64           `json:"from"`
	To   int64           `json:"to"`
	Body json.RawMessage `json:"body,omitempty"`
}
