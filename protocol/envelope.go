package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when decoding an envelope that carries no payload.
var ErrEmptyPayload = errors.New("protocol: empty payload")

// Envelope is the unit exchanged by transports. Source is stamped by the
// sending transport.
type Envelope struct {
	Tag     Tag             `json:"tag"`
	Source  int             `json:"source"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload for tag; a nil payload produces an empty envelope.
func NewEnvelope(tag Tag, payload interface{}) (*Envelope, error) {
	if !tag.IsValid() {
		return nil, fmt.Errorf("protocol: unknown tag %v", tag)
	}
	ret := &Envelope{Tag: tag}
	if payload == nil {
		return ret, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode %v payload: %w", tag, err)
	}
	ret.Payload = data
	return ret, nil
}

// Decode decodes the payload into v
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %v", ErrEmptyPayload, e.Tag)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("protocol: failed to decode %v payload: %w", e.Tag, err)
	}
	return nil
}

// Marshal encodes the whole envelope, used by transports that cross process boundaries.
func Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an envelope produced by Marshal
func Unmarshal(data []byte) (*Envelope, error) {
	ret := &Envelope{}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("protocol: invalid envelope: %w", err)
	}
	if !ret.Tag.IsValid() {
		return nil, fmt.Errorf("protocol: invalid envelope tag %v", ret.Tag)
	}
	return ret, nil
}

// EncodeBody encodes an application value into a raw body; nil stays empty.
func EncodeBody(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
