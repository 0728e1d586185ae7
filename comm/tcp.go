package comm

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// TCPPrefix marks a port name as a TCP address, for stages behind a serial
// device server, e.g. tcp://192.168.100.123:2006
const TCPPrefix = "tcp://"

// pollConn turns the read timeouts of a net.Conn into empty reads, and the
// peer hanging up into ErrNotConnected
type pollConn struct {
	net.Conn
}

func (c pollConn) Read(b []byte) (int, error) {
	c.Conn.SetReadDeadline(time.Now().Add(pollInterval))
	n, err := c.Conn.Read(b)
	if err == nil {
		return n, nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, io.EOF
	}
	if errors.Is(err, io.EOF) {
		return n, ErrNotConnected
	}
	return n, err
}

// OpenTCP dials addr, with or without TCPPrefix, and returns a Transport over it
func OpenTCP(addr string, timeout time.Duration) (*SerialPort, error) {
	addr = strings.TrimPrefix(addr, TCPPrefix)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewSerialPort(addr, pollConn{conn}), nil
}

// NewNetPort wraps an open net.Conn as a Transport
func NewNetPort(name string, conn net.Conn) *SerialPort {
	return NewSerialPort(name, pollConn{conn})
}
