// Package transport defines the point-to-point, tag-addressed channel the
// coordinator and the workers talk over. Implementations are reliable and
// preserve send order for every (source, destination) pair.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/spawnvm/protocol"
)

// AnySource matches envelopes from every sender
const AnySource = -1

// ErrClosed is returned by operations on a closed endpoint
var ErrClosed = errors.New("transport: closed")

// Transport represents one participant's endpoint
type Transport interface {
	// Rank returns this participant's address; 0 is the coordinator
	Rank() int

	// Size returns the number of participants
	Size() int

	// Send delivers envelope to dest, stamping envelope.Source with Rank()
	Send(ctx context.Context, dest int, envelope *protocol.Envelope) error

	// Receive blocks until an envelope from source (or AnySource) arrives
	Receive(ctx context.Context, source int) (*protocol.Envelope, error)

	// TryReceive performs one non-blocking probe; ok is false when nothing is pending
	TryReceive(ctx context.Context, source int) (envelope *protocol.Envelope, ok bool, err error)

	// Close releases the endpoint and wakes blocked receivers
	Close() error
}

// Error represents a raw send/receive failure
type Error struct {
	Op   string
	Rank int
	Peer int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s rank %d peer %d: %v", e.Op, e.Rank, e.Peer, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err unless it is nil or a context error, which are returned as is.
func NewError(op string, rank, peer int, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var tErr *Error
	if errors.As(err, &tErr) {
		return err
	}
	return &Error{Op: op, Rank: rank, Peer: peer, Err: err}
}

// ValidatePeer checks that peer is an address within size
func ValidatePeer(peer, size int, allowAny bool) error {
	if allowAny && peer == AnySource {
		return nil
	}
	if peer < 0 || peer >= size {
		return fmt.Errorf("invalid peer %d, world size %d", peer, size)
	}
	return nil
}
