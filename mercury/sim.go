package mercury

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nasa-jpl/mercury/comm"
)

// status register bits reported by the simulator
const (
	simPowered byte = 1 << iota
	simAborted
	simEdge
)

// DefaultTravel is the distance from zero to either edge of a simulated stage, in steps
const DefaultTravel = 1000000

type simAxis struct {
	powered  bool
	velocity int
	pos      int
	flags    byte // cleared by TS
	logic    Logic
}

func (a *simAxis) status() byte {
	s := a.flags
	if a.powered {
		s |= simPowered
	}
	return s
}

// Simulator is a Transport that behaves like a bus of Mercury controllers.
// Motion completes instantly.  Frames to absent addresses, malformed frames, and
// motion commands to unpowered stages are ignored, as the hardware does.
type Simulator struct {
	sync.Mutex

	// Travel is the distance to each edge in steps, used by FE
	Travel int

	present map[Address]bool // nil => every address answers
	axes    map[Address]*simAxis
	replies [][]byte
	closed  bool
}

// NewSimulator returns a simulator.  If addrs are given, only those stages
// exist on the bus.
func NewSimulator(addrs ...Address) *Simulator {
	s := &Simulator{Travel: DefaultTravel, axes: make(map[Address]*simAxis)}
	if len(addrs) > 0 {
		s.present = make(map[Address]bool)
		for _, a := range addrs {
			s.present[a] = true
		}
	}
	return s
}

// parseFrame splits a frame into its address, mnemonic, and optional argument
func parseFrame(b []byte) (addr Address, mnemonic string, arg int, hasArg bool, ok bool) {
	if len(b) < 5 || b[0] != SOH || b[len(b)-1] != Terminator {
		return
	}
	body := string(b[1 : len(b)-1])
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	if i == 0 || len(body) < i+2 {
		return
	}
	a, err := strconv.Atoi(body[:i])
	if err != nil {
		return
	}
	addr = Address(a + 1)
	mnemonic = body[i : i+2]
	if rest := body[i+2:]; rest != "" {
		arg, err = strconv.Atoi(rest)
		if err != nil {
			return
		}
		hasArg = true
	}
	ok = true
	return
}

func (s *Simulator) axis(addr Address) *simAxis {
	a, ok := s.axes[addr]
	if !ok {
		a = &simAxis{}
		s.axes[addr] = a
	}
	return a
}

func (s *Simulator) reply(addr Address, mnemonic, payload string) {
	out := []byte{SOH}
	out = strconv.AppendInt(out, int64(addr-1), 10)
	out = append(out, mnemonic...)
	out = append(out, payload...)
	out = append(out, Terminator)
	s.replies = append(s.replies, out)
}

// Send interprets a frame
func (s *Simulator) Send(b []byte) error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return comm.ErrNotConnected
	}
	addr, mnemonic, arg, hasArg, ok := parseFrame(b)
	if !ok {
		return nil
	}
	if s.present != nil && !s.present[addr] {
		return nil
	}
	a := s.axis(addr)
	switch mnemonic {
	case "MN":
		a.powered = true
	case "MF":
		a.powered = false
	case "RT":
		a.flags = 0
		a.velocity = 0
	case "LL":
		a.logic = LogicLow
	case "HL":
		a.logic = LogicHigh
	case "SV":
		if hasArg {
			a.velocity = arg
		}
	case "TP":
		s.reply(addr, mnemonic, fmt.Sprintf("%03d:%+07d", a.status(), a.pos))
	case "TS":
		s.reply(addr, mnemonic, fmt.Sprintf("S:%02X 00 00 00 00 00", a.status()))
		a.flags = 0
	case "AB":
		a.flags |= simAborted
	}
	if !a.powered {
		return nil
	}
	switch mnemonic {
	case "MR":
		if hasArg {
			a.pos += arg
		}
	case "MA":
		if hasArg {
			a.pos = arg
		}
	case "DH", "GH":
		a.pos = 0
	case "FE":
		if hasArg && arg == 0 {
			a.pos = -s.Travel
		} else if hasArg && arg == 1 {
			a.pos = s.Travel
		}
		a.flags |= simEdge
	}
	return nil
}

// RecvUntil returns the oldest unread reply, or times out immediately
func (s *Simulator) RecvUntil(term byte, timeout time.Duration) ([]byte, error) {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return nil, comm.ErrNotConnected
	}
	if len(s.replies) == 0 {
		return nil, fmt.Errorf("simulator: %w after %v, discarded 0 bytes", comm.ErrTimeout, timeout)
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

// Flush drops replies that were never read
func (s *Simulator) Flush() error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return comm.ErrNotConnected
	}
	s.replies = nil
	return nil
}

// Close closes the simulator
func (s *Simulator) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}

// Steps returns the simulated position of a stage
func (s *Simulator) Steps(addr Address) int {
	s.Lock()
	defer s.Unlock()
	return s.axis(addr).pos
}

// Velocity returns the simulated velocity setting of a stage
func (s *Simulator) Velocity(addr Address) int {
	s.Lock()
	defer s.Unlock()
	return s.axis(addr).velocity
}

// Logic returns the limit switch polarity last set on a stage
func (s *Simulator) Logic(addr Address) Logic {
	s.Lock()
	defer s.Unlock()
	return s.axis(addr).logic
}
