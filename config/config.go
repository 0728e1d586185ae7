// Package config loads the description of a stage bus from YAML and builds
// the stages it describes.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/mercury/comm"
	"github.com/nasa-jpl/mercury/mercury"
	"github.com/nasa-jpl/mercury/units"
)

// DefaultBaudRate is used for stages that do not give one
const DefaultBaudRate = 9600

// ErrNoStages is generated when a config has no stages to build
var ErrNoStages = errors.New("no stages configured")

// StageSetup describes one stage in the config file
type StageSetup struct {
	// Port is the serial device the stage's controller is on, e.g. /dev/ttyUSB0 or COM3,
	// or tcp://host:port for a serial device server
	Port string `koanf:"port" yaml:"port"`

	// BaudRate of the port.  Stages on the same port must agree.
	BaudRate int `koanf:"baud_rate" yaml:"baud_rate"`

	// Address is the stage's address on the bus, starting at 1
	Address int `koanf:"address" yaml:"address"`

	// StageType is translation (linear) or rotation (angular)
	StageType string `koanf:"stage_type" yaml:"stage_type"`

	// StepSize is micrometers or degrees per step.  It may be written as a
	// product or quotient, e.g. "1/3"
	StepSize string `koanf:"step_size" yaml:"step_size"`

	// Unit is used to display positions, and for amounts given without one
	Unit string `koanf:"unit" yaml:"unit"`

	// Logic is the limit switch polarity, "", "low", or "high"
	Logic string `koanf:"logic" yaml:"logic"`
}

// Config is the whole file
type Config struct {
	// Addr is the address the HTTP server listens at
	Addr string `koanf:"addr" yaml:"addr"`

	// Timeout bounds each wait for a reply, e.g. "2s"
	Timeout string `koanf:"timeout" yaml:"timeout"`

	// Velocity is sent to each stage when it is initialized
	Velocity int `koanf:"velocity" yaml:"velocity"`

	// StrictInput makes bad move amounts an error instead of a logged warning
	StrictInput bool `koanf:"strict_input" yaml:"strict_input"`

	// Debug logs every frame on the wire
	Debug bool `koanf:"debug" yaml:"debug"`

	// Mock replaces every serial port with a simulator
	Mock bool `koanf:"mock" yaml:"mock"`

	// Stages maps names to setups.  Names may not contain a period.
	Stages map[string]StageSetup `koanf:"stages" yaml:"stages"`
}

// Default returns the configuration used for anything the file leaves out
func Default() Config {
	return Config{
		Addr:     ":8000",
		Timeout:  comm.DefaultTimeout.String(),
		Velocity: mercury.DefaultVelocity,
		Stages:   map[string]StageSetup{}}
}

// Load layers the file at path over Default.  A missing file is not an error.
func Load(path string) (Config, error) {
	var c Config
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return c, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") {
			return c, fmt.Errorf("error loading config %s: %w", path, err)
		}
	}
	err := k.Unmarshal("", &c)
	return c, err
}

// Write encodes c as YAML
func Write(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}

// ParseKind maps a stage type to the kind of motion it makes
func ParseKind(stageType string) (units.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(stageType)) {
	case "translation", "linear":
		return units.Linear, nil
	case "rotation", "rotary", "angular":
		return units.Angular, nil
	default:
		return 0, fmt.Errorf("stage type %q not understood, use translation or rotation", stageType)
	}
}

// ParseStepSize reads a positive number, or numbers joined by * and /
// evaluated left to right, e.g. "18", "1/3", "0.9*2"
func ParseStepSize(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("step size is required")
	}
	var (
		acc float64 = 1
		op  byte    = '*'
		i   int
	)
	for {
		j := strings.IndexAny(s[i:], "*/")
		term := s[i:]
		if j >= 0 {
			term = s[i : i+j]
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(term), 64)
		if err != nil {
			return 0, fmt.Errorf("step size %q: %w", s, err)
		}
		if op == '*' {
			acc *= f
		} else {
			acc /= f
		}
		if j < 0 {
			break
		}
		op = s[i+j]
		i += j + 1
	}
	if !(acc > 0) || math.IsInf(acc, 0) {
		return 0, fmt.Errorf("step size %q: %w", s, units.ErrBadStepSize)
	}
	return acc, nil
}

// Resolve converts a setup to the driver's view of the stage
func Resolve(name string, s StageSetup) (mercury.StageConfig, mercury.Logic, error) {
	var (
		sc  mercury.StageConfig
		err error
	)
	if s.Address < 1 {
		return sc, 0, fmt.Errorf("stage %s: address %d, %w", name, s.Address, mercury.ErrInvalidAddress)
	}
	sc.Address = mercury.Address(s.Address)
	sc.Kind, err = ParseKind(s.StageType)
	if err != nil {
		return sc, 0, fmt.Errorf("stage %s: %w", name, err)
	}
	sc.StepSize, err = ParseStepSize(s.StepSize)
	if err != nil {
		return sc, 0, fmt.Errorf("stage %s: %w", name, err)
	}
	sc.Unit = s.Unit
	if sc.Unit == "" {
		sc.Unit = sc.Kind.Base()
	}
	if !units.Known(sc.Unit, sc.Kind) {
		return sc, 0, fmt.Errorf("stage %s: unit %q is not a %s unit", name, sc.Unit, sc.Kind)
	}
	logic, err := mercury.ParseLogic(strings.ToLower(s.Logic))
	if err != nil {
		return sc, 0, fmt.Errorf("stage %s: %w", name, err)
	}
	return sc, logic, nil
}

// Opener opens the transport for a port
type Opener func(port string, baud int) (comm.Transport, error)

// OpenSerial is the Opener for real hardware.  Ports beginning with tcp://
// are dialed instead, and baud is left to the device server.
func OpenSerial(port string, baud int) (comm.Transport, error) {
	if strings.HasPrefix(port, comm.TCPPrefix) {
		return comm.OpenTCP(port, comm.DefaultTimeout)
	}
	return comm.OpenSerial(port, baud)
}

// Build opens one transport per port and returns the configured stages.
// If open is nil, serial ports are opened, or simulators if c.Mock is set.
func Build(c Config, logger *log.Logger, open Opener) (*mercury.Stages, error) {
	if len(c.Stages) == 0 {
		return nil, ErrNoStages
	}
	if open == nil {
		open = OpenSerial
		if c.Mock {
			open = func(string, int) (comm.Transport, error) { return mercury.NewSimulator(), nil }
		}
	}
	timeout := comm.DefaultTimeout
	if c.Timeout != "" {
		var err error
		timeout, err = time.ParseDuration(c.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
	}
	velocity := c.Velocity
	if velocity == 0 {
		velocity = mercury.DefaultVelocity
	}

	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	type port struct {
		baud  int
		ctl   *mercury.Controller
		addrs map[mercury.Address]string
	}
	ports := map[string]*port{}
	ss := mercury.NewStages()
	fail := func(err error) (*mercury.Stages, error) {
		ss.Close()
		return nil, err
	}
	for _, name := range names {
		setup := c.Stages[name]
		sc, logic, err := Resolve(name, setup)
		if err != nil {
			return fail(err)
		}
		if setup.Port == "" {
			return fail(fmt.Errorf("stage %s: port is required", name))
		}
		baud := setup.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		p, ok := ports[setup.Port]
		if !ok {
			tx, err := open(setup.Port, baud)
			if err != nil {
				return fail(fmt.Errorf("stage %s: %w", name, err))
			}
			ctl := mercury.NewController(tx, logger)
			ctl.Timeout = timeout
			ctl.Velocity = velocity
			ctl.StrictInput = c.StrictInput
			ctl.Debug = c.Debug
			p = &port{baud: baud, ctl: ctl, addrs: map[mercury.Address]string{}}
			ports[setup.Port] = p
		}
		if p.baud != baud {
			return fail(fmt.Errorf("stage %s: baud rate %d on %s, other stages use %d", name, baud, setup.Port, p.baud))
		}
		if other, dup := p.addrs[sc.Address]; dup {
			return fail(fmt.Errorf("stage %s: address %d on %s is taken by %s", name, sc.Address, setup.Port, other))
		}
		p.addrs[sc.Address] = name
		ss.Add(mercury.NewStage(name, sc, logic, p.ctl))
	}
	return ss, nil
}
