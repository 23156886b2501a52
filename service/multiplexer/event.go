package multiplexer

import (
	"encoding/json"
	"fmt"

	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/protocol"
)

// Kind classifies events surfaced to callers
type Kind int

const (
	// KindResult carries a task return value
	KindResult Kind = iota + 1
	// KindExit reports that a task finished and its slot was released
	KindExit
	// KindMessage carries an application message
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindResult:
		return "result"
	case KindExit:
		return "exit"
	case KindMessage:
		return "message"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a non-transparent message returned by Receive
type Event struct {
	Kind    Kind
	Task    identity.TaskID
	Success bool
	Result  json.RawMessage
	Error   string
	Body    json.RawMessage
}

// Decode decodes the result or message body into v
func (e *Event) Decode(v interface{}) error {
	data := e.Body
	if e.Kind == KindResult {
		data = e.Result
	}
	if len(data) == 0 {
		return protocol.ErrEmptyPayload
	}
	return json.Unmarshal(data, v)
}
