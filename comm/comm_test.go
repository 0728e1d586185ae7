package comm

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// chunkConn hands out its chunks one Read at a time, then reports EOF forever
// the way a posix serial port with a read timeout does
type chunkConn struct {
	mu      sync.Mutex
	chunks  [][]byte
	written bytes.Buffer
	closed  bool
}

func (c *chunkConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) == 0 {
		time.Sleep(time.Millisecond)
		return 0, io.EOF
	}
	n := copy(b, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(b)
}

func (c *chunkConn) Close() error {
	c.closed = true
	return nil
}

func TestRecvUntilAssemblesChunks(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("P:+00"), []byte("0012"), []byte("3\r")}}
	p := NewSerialPort("test", conn)
	resp, err := p.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "P:+000123\r" {
		t.Errorf("expected P:+000123\\r, got %q", resp)
	}
}

func TestRecvUntilKeepsBytesAfterTerminator(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("first\rsec"), []byte("ond\r")}}
	p := NewSerialPort("test", conn)
	first, err := p.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "first\r" || string(second) != "second\r" {
		t.Errorf("expected first\\r and second\\r, got %q and %q", first, second)
	}
}

func TestRecvUntilTimesOutWithoutTerminator(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("garbled")}}
	p := NewSerialPort("test", conn)
	start := time.Now()
	resp, err := p.RecvUntil('\r', 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected no partial data on timeout, got %q", resp)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout of 30ms took %v", elapsed)
	}
	// the garbage must not leak into the next reply
	conn.mu.Lock()
	conn.chunks = [][]byte{[]byte("ok\r")}
	conn.mu.Unlock()
	resp, err = p.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "ok\r" {
		t.Errorf("expected ok\\r after a timeout, got %q", resp)
	}
}

func TestSendWritesFrame(t *testing.T) {
	conn := &chunkConn{}
	p := NewSerialPort("test", conn)
	if err := p.Send([]byte("\x010MN\r")); err != nil {
		t.Fatal(err)
	}
	if conn.written.String() != "\x010MN\r" {
		t.Errorf("expected the frame on the wire, got %q", conn.written.String())
	}
}

func TestClosedPortIsNotConnected(t *testing.T) {
	conn := &chunkConn{}
	p := NewSerialPort("test", conn)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !conn.closed {
		t.Error("expected Close to close the connection")
	}
	if err := p.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected from Send, got %v", err)
	}
	if _, err := p.RecvUntil('\r', time.Millisecond); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected from RecvUntil, got %v", err)
	}
}

func TestMockRecordsAndReplays(t *testing.T) {
	m := NewMock([]byte("S:00\r"))
	if err := m.Send([]byte("\x010TS\r")); err != nil {
		t.Fatal(err)
	}
	resp, err := m.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "S:00\r" {
		t.Errorf("expected the queued reply, got %q", resp)
	}
	if _, err := m.RecvUntil('\r', time.Second); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected an empty queue to time out, got %v", err)
	}
	if sent := m.Sent(); len(sent) != 1 || string(sent[0]) != "\x010TS\r" {
		t.Errorf("expected one recorded frame, got %q", sent)
	}
}

func TestFlushDropsUnreadBytes(t *testing.T) {
	conn := &chunkConn{chunks: [][]byte{[]byte("late\rextra\r"), []byte("\r")}}
	p := NewSerialPort("test", conn)
	// leave "extra\r\r" behind in the port
	if _, err := p.RecvUntil('\r', time.Second); err != nil {
		t.Fatal(err)
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	conn.mu.Lock()
	conn.chunks = [][]byte{[]byte("fresh\r")}
	conn.mu.Unlock()
	resp, err := p.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "fresh\r" {
		t.Errorf("expected fresh\\r after Flush, got %q", resp)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Flush(); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected from Flush after Close, got %v", err)
	}
}

func TestMockFlushKeepsReplies(t *testing.T) {
	m := NewMock([]byte("answer\r"))
	m.Stray([]byte("old\r"))
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	resp, err := m.RecvUntil('\r', time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "answer\r" {
		t.Errorf("expected the queued reply after Flush, got %q", resp)
	}
	if m.Flushes != 1 {
		t.Errorf("expected 1 flush, got %d", m.Flushes)
	}
}
