// Package memory implements an in-process transport: a World of N endpoints
// exchanging envelopes through per-rank mailboxes. It backs tests and the
// local launcher, where every rank runs as a goroutine.
package memory

import (
	"context"
	"fmt"

	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/service/transport"
)

// Config for memory world
type Config struct {
	// MailboxCapacity bounds pending envelopes per rank; Send blocks when full. 0 means unbounded.
	MailboxCapacity int
}

// DefaultConfig returns a standard configuration for memory world
func DefaultConfig() Config {
	return Config{MailboxCapacity: 0}
}

// World groups the endpoints of one in-process session
type World struct {
	config    Config
	mailboxes []*mailbox
}

// NewWorld creates a world of size participants
func NewWorld(size int, config Config) (*World, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world size must be > 0, got %d", size)
	}
	ret := &World{config: config, mailboxes: make([]*mailbox, size)}
	for i := range ret.mailboxes {
		ret.mailboxes[i] = newMailbox(config.MailboxCapacity)
	}
	return ret, nil
}

// Size returns number of participants
func (w *World) Size() int {
	return len(w.mailboxes)
}

// Endpoint returns the transport of rank
func (w *World) Endpoint(rank int) (*Endpoint, error) {
	if err := transport.ValidatePeer(rank, w.Size(), false); err != nil {
		return nil, err
	}
	return &Endpoint{world: w, rank: rank}, nil
}

// Pending returns the number of undelivered envelopes addressed to rank
func (w *World) Pending(rank int) int {
	if rank < 0 || rank >= w.Size() {
		return 0
	}
	return w.mailboxes[rank].size()
}

// Endpoint is one rank's view of the world
type Endpoint struct {
	world *World
	rank  int
}

// Rank returns endpoint address
func (e *Endpoint) Rank() int {
	return e.rank
}

// Size returns world size
func (e *Endpoint) Size() int {
	return e.world.Size()
}

// Send delivers a copy of envelope to dest
func (e *Endpoint) Send(ctx context.Context, dest int, envelope *protocol.Envelope) error {
	if err := transport.ValidatePeer(dest, e.Size(), false); err != nil {
		return transport.NewError("send", e.rank, dest, err)
	}
	if e.inbox().isClosed() {
		return transport.NewError("send", e.rank, dest, transport.ErrClosed)
	}
	msg := *envelope
	msg.Source = e.rank
	return transport.NewError("send", e.rank, dest, e.world.mailboxes[dest].put(ctx, &msg))
}

// Receive blocks until a matching envelope arrives
func (e *Endpoint) Receive(ctx context.Context, source int) (*protocol.Envelope, error) {
	if err := transport.ValidatePeer(source, e.Size(), true); err != nil {
		return nil, transport.NewError("receive", e.rank, source, err)
	}
	envelope, err := e.inbox().get(ctx, source)
	return envelope, transport.NewError("receive", e.rank, source, err)
}

// TryReceive probes the mailbox once
func (e *Endpoint) TryReceive(_ context.Context, source int) (*protocol.Envelope, bool, error) {
	if err := transport.ValidatePeer(source, e.Size(), true); err != nil {
		return nil, false, transport.NewError("probe", e.rank, source, err)
	}
	envelope, ok, err := e.inbox().tryGet(source)
	return envelope, ok, transport.NewError("probe", e.rank, source, err)
}

// Close closes this rank's mailbox
func (e *Endpoint) Close() error {
	e.inbox().close()
	return nil
}

func (e *Endpoint) inbox() *mailbox {
	return e.world.mailboxes[e.rank]
}

var _ transport.Transport = (*Endpoint)(nil)
