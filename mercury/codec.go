package mercury

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SOH starts every frame sent to the controllers
	SOH = 0x01

	// Terminator ends every frame and every reply
	Terminator = '\r'

	// statusPrefixLen is the fixed length of the status field in front of
	// numeric replies
	statusPrefixLen = 3
)

var (
	// ErrAddressRequired is generated when a command is built without a stage address
	ErrAddressRequired = errors.New("command needs a stage address")

	// ErrInvalidAddress is generated for negative stage addresses
	ErrInvalidAddress = errors.New("stage addresses start at 1")

	// ErrEmptyReply is generated when the controller answers with nothing but a terminator
	ErrEmptyReply = errors.New("no response from motor controller")

	// ErrArgument is generated when a command is given the wrong number of arguments
	ErrArgument = errors.New("wrong number of arguments for command")

	// Commands is the table of mnemonics understood by the controllers
	Commands = []Command{
		// power and setup
		{Cmd: "MN", Alias: "motor-on", Description: "power the motor on"},
		{Cmd: "MF", Alias: "motor-off", Description: "power the motor off"},
		{Cmd: "RT", Alias: "reset", Description: "reset the controller"},
		{Cmd: "LL", Alias: "logic-low", Description: "limit switches are active low"},
		{Cmd: "HL", Alias: "logic-high", Description: "limit switches are active high"},
		{Cmd: "SV", Alias: "set-velocity", Description: "set velocity in steps per second", TakesArg: true},

		// motion
		{Cmd: "FE", Alias: "find-edge", Description: "drive to an edge of travel, 0 or 1", TakesArg: true},
		{Cmd: "DH", Alias: "define-home", Description: "current position becomes zero"},
		{Cmd: "GH", Alias: "go-home", Description: "move to zero"},
		{Cmd: "AB", Alias: "abort", Description: "stop all motion immediately"},
		{Cmd: "MA", Alias: "move-abs", Description: "move to absolute position in steps", TakesArg: true},
		{Cmd: "MR", Alias: "move-rel", Description: "move a relative amount in steps", TakesArg: true},

		// queries
		{Cmd: "TS", Alias: "tell-status", Description: "read and clear the status register", HasReply: true},
		{Cmd: "TP", Alias: "tell-position", Description: "read position in steps", HasReply: true},
	}
)

// Command describes a mnemonic
type Command struct {
	Cmd         string `json:"cmd"`
	Alias       string `json:"alias"`
	Description string `json:"description"`
	TakesArg    bool   `json:"takesArg"`
	HasReply    bool   `json:"hasReply"`
}

// ErrCommandNotFound is generated when a mnemonic is not in the command table
type ErrCommandNotFound struct {
	Cmd string
}

func (e ErrCommandNotFound) Error() string {
	return fmt.Sprintf("command %s not found", e.Cmd)
}

// MalformedReplyError is generated when a reply does not have the expected shape
type MalformedReplyError struct {
	Reply string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("invalid motor stage response %q, check addresses and baud rate", e.Reply)
}

// Lookup finds a command by its mnemonic or alias
func Lookup(cmdAlias string) (Command, error) {
	for _, c := range Commands {
		if c.Cmd == cmdAlias || c.Alias == cmdAlias {
			return c, nil
		}
	}
	return Command{}, ErrCommandNotFound{cmdAlias}
}

// header renders SOH and the zero based address
func header(addr Address) ([]byte, error) {
	if addr == 0 {
		return nil, ErrAddressRequired
	}
	if addr < 0 {
		return nil, ErrInvalidAddress
	}
	out := make([]byte, 0, 16)
	out = append(out, SOH)
	out = strconv.AppendInt(out, int64(addr-1), 10)
	return out, nil
}

// Encode builds the frame for a mnemonic.  Commands that take an argument
// require exactly one, other commands require none.
//
//	Encode("MR", 1, -55555) => "\x010MR-55555\r"
func Encode(mnemonic string, addr Address, arg ...int) ([]byte, error) {
	c, err := Lookup(mnemonic)
	if err != nil {
		return nil, err
	}
	if c.Cmd != mnemonic {
		// aliases are for humans, the wire gets mnemonics
		return nil, ErrCommandNotFound{mnemonic}
	}
	want := 0
	if c.TakesArg {
		want = 1
	}
	if len(arg) != want {
		return nil, fmt.Errorf("%s: %w, expected %d got %d", mnemonic, ErrArgument, want, len(arg))
	}
	out, err := header(addr)
	if err != nil {
		return nil, err
	}
	out = append(out, c.Cmd...)
	if want == 1 {
		out = strconv.AppendInt(out, int64(arg[0]), 10)
	}
	return append(out, Terminator), nil
}

// splitEcho separates an echoed frame header, SOH, address digits, and a two
// letter mnemonic, from the front of a reply.  Parts that are absent come back
// empty.
func splitEcho(s string) (addr, mnemonic, rest string) {
	if len(s) == 0 || s[0] != SOH {
		return "", "", s
	}
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	addr = s[1:i]
	if len(s) >= i+2 {
		if _, err := Lookup(s[i : i+2]); err == nil {
			mnemonic = s[i : i+2]
			i += 2
		}
	}
	return addr, mnemonic, s[i:]
}

// decode strips the terminator and echo from a reply.  If addr is not zero an
// echoed address must match it, and if mnemonic is not empty so must an
// echoed mnemonic.
func decode(reply []byte, addr Address, mnemonic string) (string, error) {
	s := string(bytes.Trim(reply, string(rune(Terminator))))
	echoAddr, echoCmd, rest := splitEcho(s)
	if addr != 0 && echoAddr != "" && echoAddr != strconv.Itoa(int(addr-1)) {
		return "", &MalformedReplyError{Reply: string(reply)}
	}
	if mnemonic != "" && echoCmd != "" && echoCmd != mnemonic {
		return "", &MalformedReplyError{Reply: string(reply)}
	}
	if rest == "" {
		return "", ErrEmptyReply
	}
	return rest, nil
}

// Decode strips the terminator, and any echoed frame header, from a reply
func Decode(reply []byte) (string, error) {
	return decode(reply, 0, "")
}

// DecodeFor is Decode for the reply to mnemonic sent to addr.  A reply that
// echoes another address or command is a MalformedReplyError.
func DecodeFor(reply []byte, addr Address, mnemonic string) (string, error) {
	return decode(reply, addr, mnemonic)
}

// DecodePosition interprets a position reply as a signed step count.
// The reply carries a three character status prefix, then the number,
// which may include a + sign and : grouping.
//
//	"\x010TP003:+000000\r" => 0
func DecodePosition(reply []byte) (int, error) {
	return decodePosition(reply, 0)
}

// DecodePositionFor is DecodePosition for the reply to a TP sent to addr
func DecodePositionFor(reply []byte, addr Address) (int, error) {
	return decodePosition(reply, addr)
}

func decodePosition(reply []byte, addr Address) (int, error) {
	s, err := decode(reply, addr, "TP")
	if err != nil {
		return 0, err
	}
	if len(s) <= statusPrefixLen {
		return 0, &MalformedReplyError{Reply: string(reply)}
	}
	num := s[statusPrefixLen:]
	num = strings.ReplaceAll(num, ":", "")
	num = strings.ReplaceAll(num, "+", "")
	i, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0, &MalformedReplyError{Reply: string(reply)}
	}
	return i, nil
}
