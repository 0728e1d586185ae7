/*Package mercury drives PI Mercury stepper stage controllers over a shared
serial bus.

Every controller on the bus sees every frame; the address in the frame header
selects which one acts on it.  Frames are

	[SOH] [address-1] [mnemonic] [argument] [CR]

e.g. "\x010MR-55555\r" moves the stage at address 1 back by 55555 steps.
Only TP and TS produce a reply.

Motion is fire-and-forget.  MoveRel and MoveAbs return as soon as the frame is
written, the hardware does not report completion; poll GetPos to follow a
move.

A Controller owns one Transport and serializes access to it, so it is safe to
share between goroutines.  Stages on the same port must share a Controller.
*/
package mercury

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/nasa-jpl/mercury/comm"
	"github.com/nasa-jpl/mercury/units"
)

// Address identifies a stage on the bus, starting at 1
type Address int

// State is the driver's view of a stage.  Motion is not tracked.
type State int

const (
	// Uninitialized stages have not been through Initialize, or were powered off
	Uninitialized State = iota

	// Ready stages have been initialized and accept commands
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

var (
	// ErrInvalidEdge is generated when FindEdge is asked for an edge other than 0 or 1
	ErrInvalidEdge = errors.New("edge must be 0 or 1")

	// ErrVelocityUnknown is generated when a velocity is asked for before one was sent
	ErrVelocityUnknown = errors.New("velocity not set since startup")
)

// Controller talks to every stage on one serial port
type Controller struct {
	// Timeout bounds every read of a reply
	Timeout time.Duration

	// Velocity is sent to each stage by Initialize, in steps per second
	Velocity int

	// StrictInput makes MoveRel and MoveAbs return amount conversion errors.
	// By default they are logged as warnings and the stage is not moved.
	StrictInput bool

	// Debug logs every frame written and read
	Debug bool

	mu    sync.Mutex // guards the wire
	tx    comm.Transport
	log   *log.Logger
	sleep func(time.Duration)

	smu    sync.Mutex // guards states
	states map[Address]*record
}

// record is what the driver remembers about a stage
type record struct {
	state    State
	powered  bool
	velocity int
}

// NewController returns a controller that owns tx.  If logger is nil, messages
// go to stderr.
func NewController(tx comm.Transport, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(os.Stderr, "mercury ", log.LstdFlags)
	}
	return &Controller{
		Timeout:  comm.DefaultTimeout,
		Velocity: DefaultVelocity,
		tx:       tx,
		log:      logger,
		sleep:    time.Sleep,
		states:   make(map[Address]*record)}
}

// swallowMoveInput reports whether a move with an amount that cannot be
// converted is logged and skipped rather than returned as an error.  Queries
// and control commands always return their errors.
func (c *Controller) swallowMoveInput() bool {
	return !c.StrictInput
}

// send writes one frame.  c.mu must be held.
func (c *Controller) send(frame []byte) error {
	if c.Debug {
		c.log.Printf("tx %q", frame)
	}
	return c.tx.Send(frame)
}

// recv reads one reply.  c.mu must be held.
func (c *Controller) recv() ([]byte, error) {
	resp, err := c.tx.RecvUntil(Terminator, c.Timeout)
	if c.Debug {
		c.log.Printf("rx %q %v", resp, err)
	}
	return resp, err
}

// write sends a command that has no reply
func (c *Controller) write(mnemonic string, addr Address, arg ...int) error {
	frame, err := Encode(mnemonic, addr, arg...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(frame)
}

// query sends a command and waits for its reply, holding the wire for both
func (c *Controller) query(mnemonic string, addr Address) ([]byte, error) {
	frame, err := Encode(mnemonic, addr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// whatever is waiting on the line belongs to an earlier exchange
	if err = c.tx.Flush(); err != nil {
		return nil, err
	}
	if err = c.send(frame); err != nil {
		return nil, err
	}
	resp, err := c.recv()
	if err != nil {
		c.tx.Flush()
		return nil, fmt.Errorf("stage %d %s: %w", addr, mnemonic, err)
	}
	return resp, nil
}

// update calls fcn with the record of addr, creating it if needed
func (c *Controller) update(addr Address, fcn func(*record)) {
	c.smu.Lock()
	defer c.smu.Unlock()
	r, ok := c.states[addr]
	if !ok {
		r = &record{}
		c.states[addr] = r
	}
	fcn(r)
}

func (c *Controller) lookup(addr Address) record {
	c.smu.Lock()
	defer c.smu.Unlock()
	if r, ok := c.states[addr]; ok {
		return *r
	}
	return record{}
}

// State returns what the driver knows about a stage
func (c *Controller) State(addr Address) State {
	return c.lookup(addr).state
}

// Powered returns true if the driver last powered the motor on
func (c *Controller) Powered(addr Address) bool {
	return c.lookup(addr).powered
}

// GetVelocity returns the velocity last sent to a stage.  The controllers
// cannot report it.
func (c *Controller) GetVelocity(addr Address) (int, error) {
	r := c.lookup(addr)
	if r.velocity == 0 {
		return 0, fmt.Errorf("stage %d: %w", addr, ErrVelocityUnknown)
	}
	return r.velocity, nil
}

// Initialize powers on and resets a stage, optionally sets its limit switch
// logic, and sets its velocity.  The wire is held for the whole sequence,
// including the settle delays, so no other frame can land in between.
// Initializing a stage twice is harmless.
func (c *Controller) Initialize(addr Address, logic Logic) error {
	seq, err := InitSequence(addr, logic, c.Velocity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, step := range seq {
		if err := c.send(step.Frame); err != nil {
			return fmt.Errorf("initializing stage %d: %w", addr, err)
		}
		c.sleep(step.Delay)
	}
	c.update(addr, func(r *record) {
		r.state = Ready
		r.powered = true
		r.velocity = c.Velocity
	})
	c.log.Printf("initialized motor stage with address %d", addr)
	return nil
}

// PowerOn energizes the motor
func (c *Controller) PowerOn(addr Address) error {
	if err := c.write("MN", addr); err != nil {
		return err
	}
	c.update(addr, func(r *record) { r.powered = true })
	return nil
}

// PowerOff de-energizes the motor.  The stage must be initialized again before use.
func (c *Controller) PowerOff(addr Address) error {
	if err := c.write("MF", addr); err != nil {
		return err
	}
	c.update(addr, func(r *record) {
		r.state = Uninitialized
		r.powered = false
	})
	return nil
}

// SetVelocity sets the velocity of a stage in steps per second
func (c *Controller) SetVelocity(addr Address, velocity int) error {
	if err := c.write("SV", addr, velocity); err != nil {
		return err
	}
	c.update(addr, func(r *record) { r.velocity = velocity })
	return nil
}

func (c *Controller) move(mnemonic string, addr Address, amount, unit string, kind units.Kind, stepSize float64) error {
	steps, err := units.ToSteps(amount, unit, kind, stepSize)
	if err != nil {
		if c.swallowMoveInput() {
			c.log.Printf("warning: invalid amount input %q for stage %d, not moving: %v", amount, addr, err)
			return nil
		}
		return err
	}
	if err := c.write(mnemonic, addr, steps); err != nil {
		return err
	}
	if c.Debug {
		c.log.Printf("%s %d steps on stage %d", mnemonic, steps, addr)
	}
	return nil
}

// MoveRel moves a stage by amount, positive ahead and negative back.  amount
// may carry a unit ("4cm", "-2mm"); a bare number is taken in unit.  stepSize
// is in micrometers (linear) or degrees (angular) per step.
func (c *Controller) MoveRel(addr Address, amount, unit string, kind units.Kind, stepSize float64) error {
	return c.move("MR", addr, amount, unit, kind, stepSize)
}

// MoveAbs moves a stage to the absolute position amount.  Arguments are as MoveRel.
func (c *Controller) MoveAbs(addr Address, amount, unit string, kind units.Kind, stepSize float64) error {
	return c.move("MA", addr, amount, unit, kind, stepSize)
}

// SetHome makes the current position of a stage its zero
func (c *Controller) SetHome(addr Address) error {
	if err := c.write("DH", addr); err != nil {
		return err
	}
	c.log.Printf("set home for motor stage with address %d", addr)
	return nil
}

// GoHome moves a stage to its zero
func (c *Controller) GoHome(addr Address) error {
	if err := c.write("GH", addr); err != nil {
		return err
	}
	c.log.Printf("go home for motor stage with address %d", addr)
	return nil
}

// Abort stops all motion of a stage immediately
func (c *Controller) Abort(addr Address) error {
	if err := c.write("AB", addr); err != nil {
		return err
	}
	c.update(addr, func(r *record) {
		if r.state != Uninitialized {
			r.state = Ready
		}
	})
	c.log.Printf("stopped all movement of motor stage with address %d", addr)
	return nil
}

// GetSteps returns the position of a stage in steps
func (c *Controller) GetSteps(addr Address) (int, error) {
	resp, err := c.query("TP", addr)
	if err != nil {
		return 0, err
	}
	return DecodePositionFor(resp, addr)
}

// GetPos returns the position of a stage in unit, with three decimal digits
func (c *Controller) GetPos(addr Address, unit string, kind units.Kind, stepSize float64) (string, error) {
	steps, err := c.GetSteps(addr)
	if err != nil {
		return "", err
	}
	return units.ToPhysical(steps, kind, stepSize, unit)
}

// GetStatus returns the status register of a stage.  Reading it clears it.
func (c *Controller) GetStatus(addr Address) (string, error) {
	resp, err := c.query("TS", addr)
	if err != nil {
		return "", err
	}
	return DecodeFor(resp, addr, "TS")
}

// FindEdge drives a stage toward edge 0 or 1 of its travel, then reads back
// the position once.  If that read fails, the edge search has still been
// started.
func (c *Controller) FindEdge(addr Address, edge int, unit string, kind units.Kind, stepSize float64) (string, error) {
	if edge != 0 && edge != 1 {
		return "", ErrInvalidEdge
	}
	if err := c.write("FE", addr, edge); err != nil {
		return "", err
	}
	pos, err := c.GetPos(addr, unit, kind, stepSize)
	if err != nil {
		return "", fmt.Errorf("edge search started, reading position: %w", err)
	}
	c.log.Printf("edge found at position %s %s on stage %d", pos, unit, addr)
	return pos, nil
}

// Close closes the transport
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx.Close()
}
