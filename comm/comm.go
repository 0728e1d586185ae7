/*Package comm provides the byte transport used to talk to stage controllers.

A Transport is a single exclusive channel to a device: Send writes a complete
frame, RecvUntil blocks until a terminator byte arrives or a timeout elapses.
Transports are not safe for concurrent use on their own; the driver that owns
one serializes access to it.

SerialPort is the RS-232 implementation on top of github.com/tarm/serial.  Mock
records every frame and replays canned replies, for tests and dry runs.

	port, err := comm.OpenSerial("/dev/ttyUSB0", 9600)
	if err != nil {
		return err
	}
	defer port.Close()
	err = port.Send([]byte("\x010TP\r"))
	...
	resp, err := port.RecvUntil('\r', 2*time.Second)
*/
package comm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

const (
	// DefaultTimeout is how long RecvUntil waits for a terminator when the
	// caller does not say otherwise
	DefaultTimeout = 2 * time.Second

	// pollInterval bounds each read on the port so deadlines are observed
	pollInterval = 50 * time.Millisecond

	readChunk = 64

	// maxDrainReads bounds Flush against a device that never stops talking
	maxDrainReads = 64
)

var (
	// ErrNotConnected is generated when Send or RecvUntil is called after Close
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTimeout is generated when no terminator arrives before the deadline
	ErrTimeout = errors.New("timeout waiting for terminator")
)

// Transport is an exclusive byte channel to a device
type Transport interface {
	// Send writes b in full
	Send(b []byte) error

	// RecvUntil returns the bytes up to and including term.  If term does not
	// arrive within timeout, the error wraps ErrTimeout.
	RecvUntil(term byte, timeout time.Duration) ([]byte, error)

	// Flush discards everything received and not yet read, such as a reply
	// that arrived after its RecvUntil timed out
	Flush() error

	// Close releases the underlying device
	Close() error
}

// SerialConf returns the serial configuration used for a stage controller port.
// Mercury controllers use 8 data bits, no parity, and 2 stop bits.
func SerialConf(name string, baud int) *serial.Config {
	return &serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop2,
		ReadTimeout: pollInterval}
}

// SerialPort is a Transport over an RS-232 port.  The zero value is not usable,
// create one with OpenSerial.
type SerialPort struct {
	Name string

	conn io.ReadWriteCloser

	// pending holds bytes read past the last terminator
	pending []byte

	// now is swapped in tests
	now func() time.Time
}

// OpenSerial opens the named port at the given baud rate.  Opening is retried
// with a short exponential backoff, USB serial adapters are often slow to
// become available after enumeration.
func OpenSerial(name string, baud int) (*SerialPort, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		var err error
		conn, err = serial.OpenPort(SerialConf(name, baud))
		if err != nil {
			// no amount of waiting will create a missing device
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "no such file") {
				return nil
			}
		}
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         500 * time.Millisecond,
		MaxElapsedTime:      2 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	if conn == nil {
		return nil, fmt.Errorf("opening %s: no such device", name)
	}
	return NewSerialPort(name, conn), nil
}

// NewSerialPort wraps an already open connection.  conn should return from
// Read periodically even when no data arrives, as tarm/serial does when a
// ReadTimeout is configured, or RecvUntil cannot honor its timeout.
func NewSerialPort(name string, conn io.ReadWriteCloser) *SerialPort {
	return &SerialPort{Name: name, conn: conn, now: time.Now}
}

// Send writes b to the port
func (p *SerialPort) Send(b []byte) error {
	if p.conn == nil {
		return ErrNotConnected
	}
	_, err := p.conn.Write(b)
	return err
}

// RecvUntil reads until term is seen or timeout elapses.  Bytes after the
// terminator are retained for the next call.  On timeout the partial bytes are
// discarded and an error wrapping ErrTimeout is returned.
func (p *SerialPort) RecvUntil(term byte, timeout time.Duration) ([]byte, error) {
	if p.conn == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := p.now().Add(timeout)
	buf := make([]byte, readChunk)
	for {
		if idx := bytes.IndexByte(p.pending, term); idx >= 0 {
			out := make([]byte, idx+1)
			copy(out, p.pending[:idx+1])
			p.pending = p.pending[idx+1:]
			return out, nil
		}
		if !p.now().Before(deadline) {
			n := len(p.pending)
			p.pending = nil
			return nil, fmt.Errorf("%s: %w after %v, discarded %d bytes", p.Name, ErrTimeout, timeout, n)
		}
		n, err := p.conn.Read(buf)
		if n > 0 {
			p.pending = append(p.pending, buf[:n]...)
		}
		// a read timeout on posix surfaces as EOF with no data
		if err != nil && err != io.EOF {
			return nil, err
		}
	}
}

// Flush drops the retained bytes and reads from the port until a read comes
// back empty.  Only the receive side is touched, frames already written are
// still transmitted.
func (p *SerialPort) Flush() error {
	if p.conn == nil {
		return ErrNotConnected
	}
	p.pending = nil
	buf := make([]byte, readChunk)
	for i := 0; i < maxDrainReads; i++ {
		n, err := p.conn.Read(buf)
		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Close closes the port.  Further calls fail with ErrNotConnected.
func (p *SerialPort) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	if err == nil {
		p.conn = nil
		p.pending = nil
	}
	return err
}
