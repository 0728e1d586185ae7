package comm

import (
	"fmt"
	"sync"
	"time"
)

// Mock is a Transport that records what is sent and replays canned replies.
// It never blocks: RecvUntil with nothing queued fails with ErrTimeout at once.
type Mock struct {
	sync.Mutex

	sent    [][]byte
	replies [][]byte
	stray   [][]byte
	closed  bool

	// Flushes counts calls to Flush
	Flushes int

	// SendErr, if not nil, is returned by every Send
	SendErr error
}

// NewMock returns a Mock with the given replies queued
func NewMock(replies ...[]byte) *Mock {
	m := &Mock{}
	m.Queue(replies...)
	return m
}

// Queue appends replies to be returned by future RecvUntil calls
func (m *Mock) Queue(replies ...[]byte) {
	m.Lock()
	defer m.Unlock()
	for _, r := range replies {
		cpy := make([]byte, len(r))
		copy(cpy, r)
		m.replies = append(m.replies, cpy)
	}
}

// Stray queues bytes that are already waiting on the line, ahead of any
// reply.  They are returned by RecvUntil unless Flush discards them first.
func (m *Mock) Stray(b ...[]byte) {
	m.Lock()
	defer m.Unlock()
	for _, r := range b {
		cpy := make([]byte, len(r))
		copy(cpy, r)
		m.stray = append(m.stray, cpy)
	}
}

// Flush discards stray bytes.  Queued replies stand for what the device says
// in answer to later frames and are kept.
func (m *Mock) Flush() error {
	m.Lock()
	defer m.Unlock()
	if m.closed {
		return ErrNotConnected
	}
	m.Flushes++
	m.stray = nil
	return nil
}

// Send records b
func (m *Mock) Send(b []byte) error {
	m.Lock()
	defer m.Unlock()
	if m.closed {
		return ErrNotConnected
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	cpy := make([]byte, len(b))
	copy(cpy, b)
	m.sent = append(m.sent, cpy)
	return nil
}

// RecvUntil pops the next queued reply.  term is not checked, a reply lacking
// it is returned as-is so callers can be tested against garbled input.
func (m *Mock) RecvUntil(term byte, timeout time.Duration) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	if m.closed {
		return nil, ErrNotConnected
	}
	if len(m.stray) > 0 {
		r := m.stray[0]
		m.stray = m.stray[1:]
		return r, nil
	}
	if len(m.replies) == 0 {
		return nil, fmt.Errorf("mock: %w after %v, discarded 0 bytes", ErrTimeout, timeout)
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

// Close marks the mock closed
func (m *Mock) Close() error {
	m.Lock()
	defer m.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of every frame sent so far, oldest first
func (m *Mock) Sent() [][]byte {
	m.Lock()
	defer m.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recently sent frame, or nil
func (m *Mock) Last() []byte {
	m.Lock()
	defer m.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

// Reset forgets sent frames and queued replies
func (m *Mock) Reset() {
	m.Lock()
	defer m.Unlock()
	m.sent = nil
	m.replies = nil
	m.stray = nil
}
