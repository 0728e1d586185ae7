/*Command motor controls PI Mercury stages from the terminal.

	motor move -a 2mm x_axis
	motor pos x_axis

Stages are described in a YAML file, see stagesrv help.  Each invocation opens
only the port of the stage it is given.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/theckman/yacspin"
	"go.bug.st/serial"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/mercury/config"
	"github.com/nasa-jpl/mercury/mercury"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is the default config path
	ConfigFileName = "motor.yml"

	errUsage = errors.New("usage")
)

const usage = `motor is a terminal interface to PI Mercury stepper stages.

Usage:
	motor <command> [flags] <stage>

Commands:
	init      power on, reset and set the velocity of a stage
	move      move a relative amount, -a 2mm; bare numbers are in the stage's unit
	moveto    move to an absolute position, -a 2mm
	pos       print the position
	stop      abort all motion
	sethome   make the current position zero
	gohome    move to zero
	status    print and clear the status register
	edge      drive to an edge of travel, -e 0 or -e 1
	watch     print the position repeatedly, -n samples -i interval
	ports     list serial ports on this computer
	conf      print the configuration
	mkconf    write the configuration file
	version   print the version

Every command takes -c <config file>, default motor.yml.`

// env is what a command runs with
type env struct {
	out    io.Writer
	conf   config.Config
	path   string
	stage  *mercury.Stage
	stages *mercury.Stages
}

type command struct {
	// needsStage commands take a stage name and open its port
	needsStage bool

	// flags adds command specific flags to fs and returns the function to run
	flags func(fs *flag.FlagSet) func(e *env) error
}

func noFlags(fcn func(e *env) error) func(*flag.FlagSet) func(*env) error {
	return func(*flag.FlagSet) func(*env) error { return fcn }
}

var commands = map[string]command{
	"init": {true, noFlags(func(e *env) error {
		spin := newSpinner(e.out, fmt.Sprintf(" initializing %s", e.stage.Name))
		err := e.stage.Initialize()
		stopSpinner(spin, err)
		return err
	})},
	"move": {true, func(fs *flag.FlagSet) func(*env) error {
		a := fs.String("a", "0", "relative amount to move")
		return func(e *env) error {
			return e.stage.MoveRel(*a)
		}
	}},
	"moveto": {true, func(fs *flag.FlagSet) func(*env) error {
		a := fs.String("a", "0", "absolute position to move to")
		return func(e *env) error {
			return e.stage.MoveAbs(*a)
		}
	}},
	"pos": {true, noFlags(func(e *env) error {
		pos, err := e.stage.GetPos()
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%s %s\n", pos, e.stage.Unit)
		return nil
	})},
	"stop":    {true, noFlags(func(e *env) error { return e.stage.Abort() })},
	"sethome": {true, noFlags(func(e *env) error { return e.stage.SetHome() })},
	"gohome":  {true, noFlags(func(e *env) error { return e.stage.GoHome() })},
	"status": {true, noFlags(func(e *env) error {
		s, err := e.stage.GetStatus()
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, s)
		return nil
	})},
	"edge": {true, func(fs *flag.FlagSet) func(*env) error {
		edge := fs.Int("e", 0, "edge to find, 0 or 1")
		return func(e *env) error {
			pos, err := e.stage.FindEdge(*edge)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "edge %d at %s %s\n", *edge, pos, e.stage.Unit)
			return nil
		}
	}},
	"watch": {true, func(fs *flag.FlagSet) func(*env) error {
		n := fs.Int("n", 10, "number of samples, 0 for no limit")
		interval := fs.Duration("i", 200*time.Millisecond, "time between samples")
		return func(e *env) error {
			return watch(context.Background(), e, *n, *interval)
		}
	}},
	"ports": {false, noFlags(func(e *env) error {
		ports, err := serial.GetPortsList()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(e.out, "no serial ports found")
		}
		for _, p := range ports {
			fmt.Fprintln(e.out, p)
		}
		return nil
	})},
	"conf": {false, noFlags(func(e *env) error {
		return config.Write(e.out, e.conf)
	})},
	"mkconf": {false, noFlags(func(e *env) error {
		f, err := os.Create(e.path)
		if err != nil {
			return err
		}
		defer f.Close()
		return config.Write(f, e.conf)
	})},
	"version": {false, noFlags(func(e *env) error {
		fmt.Fprintf(e.out, "motor version %v\n", Version)
		return nil
	})},
}

// watch prints the position of the stage n times, no faster than one sample per interval
func watch(ctx context.Context, e *env, n int, interval time.Duration) error {
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for i := 0; n == 0 || i < n; i++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		pos, err := e.stage.GetPos()
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%s %s %s\n", time.Now().Format("15:04:05.000"), pos, e.stage.Unit)
	}
	return nil
}

// newSpinner returns a started spinner if out is the terminal, otherwise nil
func newSpinner(out io.Writer, suffix string) *yacspin.Spinner {
	if out != os.Stdout {
		return nil
	}
	spin, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            suffix,
		StopCharacter:     "done",
		StopFailCharacter: "failed",
	})
	if err != nil {
		return nil
	}
	if err = spin.Start(); err != nil {
		return nil
	}
	return spin
}

func stopSpinner(spin *yacspin.Spinner, err error) {
	if spin == nil {
		return
	}
	if err != nil {
		spin.StopFail()
		return
	}
	spin.Stop()
}

// run executes one command line, args not including the program name
func run(args []string, out io.Writer, logger *log.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	name := strings.ToLower(args[0])
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("c", ConfigFileName, "configuration file")
	fcn := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	c, err := config.Load(*path)
	if err != nil {
		return err
	}
	e := &env{out: out, conf: c, path: *path}
	if cmd.needsStage {
		if fs.NArg() != 1 {
			return fmt.Errorf("%s needs exactly one stage name, one of %s", name, stageNames(c))
		}
		stage := fs.Arg(0)
		setup, ok := c.Stages[stage]
		if !ok {
			return fmt.Errorf("%w, configured stages are %s", mercury.ErrStageNotFound{Name: stage}, stageNames(c))
		}
		// only open the port this stage is on
		c.Stages = map[string]config.StageSetup{stage: setup}
		e.stages, err = config.Build(c, logger, nil)
		if err != nil {
			return err
		}
		defer e.stages.Close()
		e.stage, err = e.stages.Get(stage)
		if err != nil {
			return err
		}
	}
	return fcn(e)
}

func stageNames(c config.Config) string {
	names := make([]string, 0, len(c.Stages))
	for k := range c.Stages {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	err := run(os.Args[1:], os.Stdout, logger)
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		fmt.Println(usage)
		return
	}
	if err != nil {
		log.Fatal(err)
	}
}
