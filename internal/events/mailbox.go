package events

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Publish once the consumer has detached.
var ErrClosed = errors.New("events: mailbox closed")

// Mailbox is an unbounded multi-producer, single-consumer event queue.
// Publish never blocks; Drain hands over everything queued so far.
type Mailbox struct {
	mu      sync.Mutex
	pending []Event
	seq     uint64
	closed  bool
	notify  chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Publish enqueues ev and stamps its sequence number.
func (m *Mailbox) Publish(ev Event) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.seq++
	ev.Seq = m.seq
	m.pending = append(m.pending, ev)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Drain returns all pending events in publish order without blocking.
func (m *Mailbox) Drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	out := m.pending
	m.pending = nil
	return out
}

// Ready is signalled after a publish; the consumer may use it to wake early.
func (m *Mailbox) Ready() <-chan struct{} { return m.notify }

// Len reports how many events are waiting.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close detaches the consumer. Events still pending stay drainable.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
