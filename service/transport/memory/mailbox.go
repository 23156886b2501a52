package memory

import (
	"context"
	"sync"

	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/service/transport"
)

// mailbox holds envelopes addressed to one rank in arrival order. Receivers
// wait on changed, which is closed and replaced on every put or close.
type mailbox struct {
	mu       sync.Mutex
	messages []*protocol.Envelope
	changed  chan struct{}
	closed   bool
	capacity int
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{changed: make(chan struct{}), capacity: capacity}
}

func (m *mailbox) notify() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *mailbox) put(ctx context.Context, envelope *protocol.Envelope) error {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return transport.ErrClosed
		}
		if m.capacity <= 0 || len(m.messages) < m.capacity {
			m.messages = append(m.messages, envelope)
			m.notify()
			m.mu.Unlock()
			return nil
		}
		changed := m.changed
		m.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// take removes the oldest envelope from source; the caller holds the lock.
func (m *mailbox) take(source int) *protocol.Envelope {
	for i, candidate := range m.messages {
		if source != transport.AnySource && candidate.Source != source {
			continue
		}
		m.messages = append(m.messages[:i], m.messages[i+1:]...)
		m.notify()
		return candidate
	}
	return nil
}

func (m *mailbox) tryGet(source int) (*protocol.Envelope, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if envelope := m.take(source); envelope != nil {
		return envelope, true, nil
	}
	if m.closed {
		return nil, false, transport.ErrClosed
	}
	return nil, false, nil
}

func (m *mailbox) get(ctx context.Context, source int) (*protocol.Envelope, error) {
	for {
		m.mu.Lock()
		if envelope := m.take(source); envelope != nil {
			m.mu.Unlock()
			return envelope, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, transport.ErrClosed
		}
		changed := m.changed
		m.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.notify()
}

func (m *mailbox) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mailbox) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
