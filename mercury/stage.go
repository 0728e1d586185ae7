package mercury

import (
	"fmt"
	"sort"

	"github.com/nasa-jpl/mercury/units"
)

// StageConfig describes one stage.  It is fixed at startup.
type StageConfig struct {
	// Address is the stage's address on the bus
	Address Address

	// Kind is whether the stage translates or rotates
	Kind units.Kind

	// StepSize is micrometers (linear) or degrees (angular) per step
	StepSize float64

	// Unit is used for display, and for amounts given without a unit
	Unit string
}

// Stage binds a StageConfig to the Controller for its port
type Stage struct {
	StageConfig

	// Name is how users refer to the stage
	Name string

	// Logic is the limit switch polarity set by Initialize
	Logic Logic

	ctl *Controller
}

// NewStage returns a stage on ctl
func NewStage(name string, cfg StageConfig, logic Logic, ctl *Controller) *Stage {
	return &Stage{StageConfig: cfg, Name: name, Logic: logic, ctl: ctl}
}

// Controller returns the controller the stage is on
func (s *Stage) Controller() *Controller {
	return s.ctl
}

// Initialize initializes the stage
func (s *Stage) Initialize() error {
	return s.ctl.Initialize(s.Address, s.Logic)
}

// MoveRel moves the stage by amount
func (s *Stage) MoveRel(amount string) error {
	return s.ctl.MoveRel(s.Address, amount, s.Unit, s.Kind, s.StepSize)
}

// MoveAbs moves the stage to amount
func (s *Stage) MoveAbs(amount string) error {
	return s.ctl.MoveAbs(s.Address, amount, s.Unit, s.Kind, s.StepSize)
}

// GetPos returns the position in the stage's unit
func (s *Stage) GetPos() (string, error) {
	return s.ctl.GetPos(s.Address, s.Unit, s.Kind, s.StepSize)
}

// GetStatus returns, and clears, the stage status register
func (s *Stage) GetStatus() (string, error) {
	return s.ctl.GetStatus(s.Address)
}

// SetHome makes the current position zero
func (s *Stage) SetHome() error {
	return s.ctl.SetHome(s.Address)
}

// GoHome moves to zero
func (s *Stage) GoHome() error {
	return s.ctl.GoHome(s.Address)
}

// Abort stops the stage
func (s *Stage) Abort() error {
	return s.ctl.Abort(s.Address)
}

// FindEdge drives the stage to edge 0 or 1 and returns the position reached
func (s *Stage) FindEdge(edge int) (string, error) {
	return s.ctl.FindEdge(s.Address, edge, s.Unit, s.Kind, s.StepSize)
}

// SetVelocity sets the velocity in steps per second
func (s *Stage) SetVelocity(velocity int) error {
	return s.ctl.SetVelocity(s.Address, velocity)
}

// GetVelocity returns the velocity last sent, in steps per second
func (s *Stage) GetVelocity() (int, error) {
	return s.ctl.GetVelocity(s.Address)
}

// State returns the driver state of the stage
func (s *Stage) State() State {
	return s.ctl.State(s.Address)
}

// ErrStageNotFound is generated when a stage name is unknown
type ErrStageNotFound struct {
	Name string
}

func (e ErrStageNotFound) Error() string {
	return fmt.Sprintf("stage %s not found", e.Name)
}

// NotFound is always true
func (e ErrStageNotFound) NotFound() bool { return true }

// Stages is a named set of stages, possibly spread over several ports.
// Its methods take the stage name as the axis.
type Stages struct {
	stages map[string]*Stage
}

// NewStages returns an empty set
func NewStages() *Stages {
	return &Stages{stages: make(map[string]*Stage)}
}

// Add puts s in the set, replacing any stage with the same name
func (ss *Stages) Add(s *Stage) {
	ss.stages[s.Name] = s
}

// Get returns the stage with the given name
func (ss *Stages) Get(name string) (*Stage, error) {
	s, ok := ss.stages[name]
	if !ok {
		return nil, ErrStageNotFound{name}
	}
	return s, nil
}

// Axes returns the stage names, sorted
func (ss *Stages) Axes() []string {
	out := make([]string, 0, len(ss.stages))
	for k := range ss.stages {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Initialize initializes the named stage
func (ss *Stages) Initialize(axis string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.Initialize()
}

// MoveRel moves the named stage by amount
func (ss *Stages) MoveRel(axis, amount string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.MoveRel(amount)
}

// MoveAbs moves the named stage to amount
func (ss *Stages) MoveAbs(axis, amount string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.MoveAbs(amount)
}

// GetPos returns the position of the named stage
func (ss *Stages) GetPos(axis string) (string, error) {
	s, err := ss.Get(axis)
	if err != nil {
		return "", err
	}
	return s.GetPos()
}

// GetStatus returns the status of the named stage
func (ss *Stages) GetStatus(axis string) (string, error) {
	s, err := ss.Get(axis)
	if err != nil {
		return "", err
	}
	return s.GetStatus()
}

// Stop aborts motion of the named stage
func (ss *Stages) Stop(axis string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.Abort()
}

// SetHome sets the home of the named stage
func (ss *Stages) SetHome(axis string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.SetHome()
}

// GoHome sends the named stage home
func (ss *Stages) GoHome(axis string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.GoHome()
}

// FindEdge drives the named stage to an edge
func (ss *Stages) FindEdge(axis string, edge int) (string, error) {
	s, err := ss.Get(axis)
	if err != nil {
		return "", err
	}
	return s.FindEdge(edge)
}

// Enable powers the motor of the named stage on
func (ss *Stages) Enable(axis string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.ctl.PowerOn(s.Address)
}

// Disable powers the motor of the named stage off.  It must be initialized
// again before use.
func (ss *Stages) Disable(axis string) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.ctl.PowerOff(s.Address)
}

// GetEnabled returns true if the motor of the named stage was last powered on
func (ss *Stages) GetEnabled(axis string) (bool, error) {
	s, err := ss.Get(axis)
	if err != nil {
		return false, err
	}
	return s.ctl.Powered(s.Address), nil
}

// SetVelocity sets the velocity of the named stage in steps per second
func (ss *Stages) SetVelocity(axis string, velocity int) error {
	s, err := ss.Get(axis)
	if err != nil {
		return err
	}
	return s.SetVelocity(velocity)
}

// GetVelocity returns the velocity last sent to the named stage
func (ss *Stages) GetVelocity(axis string) (int, error) {
	s, err := ss.Get(axis)
	if err != nil {
		return 0, err
	}
	return s.GetVelocity()
}

// Close closes every controller in the set once
func (ss *Stages) Close() error {
	var first error
	seen := map[*Controller]bool{}
	for _, s := range ss.stages {
		if seen[s.ctl] {
			continue
		}
		seen[s.ctl] = true
		if err := s.ctl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
