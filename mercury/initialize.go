package mercury

import (
	"fmt"
	"time"
)

// SettleDelay is the pause the firmware needs after each initialization
// command.  A stage that is sent its next command sooner silently ignores it.
const SettleDelay = 100 * time.Millisecond

// DefaultVelocity is the SV argument sent during initialization, in steps per second
const DefaultVelocity = 200000

// Logic is the polarity of the limit switch inputs
type Logic int

const (
	// LogicUnchanged leaves the controller's polarity setting alone
	LogicUnchanged Logic = iota

	// LogicLow selects active low limit switches (LL)
	LogicLow

	// LogicHigh selects active high limit switches (HL)
	LogicHigh
)

// ParseLogic understands "", "low", and "high"
func ParseLogic(s string) (Logic, error) {
	switch s {
	case "":
		return LogicUnchanged, nil
	case "low":
		return LogicLow, nil
	case "high":
		return LogicHigh, nil
	default:
		return LogicUnchanged, fmt.Errorf("logic level %q not understood, use low or high", s)
	}
}

func (l Logic) String() string {
	switch l {
	case LogicLow:
		return "low"
	case LogicHigh:
		return "high"
	default:
		return ""
	}
}

// Step is one frame of a command sequence and the pause that must follow it
type Step struct {
	Frame []byte
	Delay time.Duration
}

// InitSequence returns the frames that bring a stage up: power on, reset,
// optionally the logic level, then the velocity.  Every frame is followed by
// SettleDelay.
func InitSequence(addr Address, logic Logic, velocity int) ([]Step, error) {
	type cmd struct {
		mnemonic string
		arg      []int
	}
	cmds := []cmd{{"MN", nil}, {"RT", nil}}
	switch logic {
	case LogicLow:
		cmds = append(cmds, cmd{"LL", nil})
	case LogicHigh:
		cmds = append(cmds, cmd{"HL", nil})
	}
	cmds = append(cmds, cmd{"SV", []int{velocity}})

	steps := make([]Step, 0, len(cmds))
	for _, c := range cmds {
		frame, err := Encode(c.mnemonic, addr, c.arg...)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Frame: frame, Delay: SettleDelay})
	}
	return steps, nil
}
