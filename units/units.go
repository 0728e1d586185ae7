// Package units converts between physical amounts written as text, such as
// "2cm" or "-1.5 deg", and the integer step counts understood by stepper stages.
//
// Linear quantities are converted through micrometers and angular quantities
// through degrees.  A stage's step size is expressed in those base units.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the family of physical quantity a stage moves in
type Kind int

const (
	// Linear stages translate and are calibrated in micrometers per step
	Linear Kind = iota

	// Angular stages rotate and are calibrated in degrees per step
	Angular
)

// String satisfies fmt.Stringer
func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Angular:
		return "angular"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Base returns the symbol of the unit that step sizes of this kind are given in
func (k Kind) Base() string {
	switch k {
	case Linear:
		return "um"
	case Angular:
		return "deg"
	default:
		return ""
	}
}

func (k Kind) dimension() string {
	switch k {
	case Linear:
		return "a length"
	case Angular:
		return "an angle"
	default:
		return "an unknown dimension"
	}
}

// unit is a scale factor to the base unit of its kind
type unit struct {
	kind   Kind
	factor float64
}

const radToDeg = 180 / math.Pi

var (
	// ErrBadStepSize is generated when a step size is zero, negative, or not finite
	ErrBadStepSize = errors.New("step size must be a positive, finite number")

	table = map[string]unit{
		// length, in micrometers
		"nm":         {Linear, 1e-3},
		"um":         {Linear, 1},
		"µm":         {Linear, 1}, // micro sign
		"μm":         {Linear, 1}, // greek mu
		"micron":     {Linear, 1},
		"micrometer": {Linear, 1},
		"micrometre": {Linear, 1},
		"mm":         {Linear, 1e3},
		"millimeter": {Linear, 1e3},
		"millimetre": {Linear, 1e3},
		"cm":         {Linear, 1e4},
		"centimeter": {Linear, 1e4},
		"centimetre": {Linear, 1e4},
		"dm":         {Linear, 1e5},
		"m":          {Linear, 1e6},
		"meter":      {Linear, 1e6},
		"metre":      {Linear, 1e6},
		"km":         {Linear, 1e9},
		"mil":        {Linear, 25.4},
		"thou":       {Linear, 25.4},
		"in":         {Linear, 25400},
		"inch":       {Linear, 25400},
		"ft":         {Linear, 304800},
		"foot":       {Linear, 304800},

		// angle, in degrees
		"deg":     {Angular, 1},
		"degree":  {Angular, 1},
		"degrees": {Angular, 1},
		"°":       {Angular, 1},
		"rad":     {Angular, radToDeg},
		"radian":  {Angular, radToDeg},
		"mrad":    {Angular, radToDeg * 1e-3},
		"urad":    {Angular, radToDeg * 1e-6},
		"µrad":    {Angular, radToDeg * 1e-6},
		"μrad":    {Angular, radToDeg * 1e-6},
		"arcmin":  {Angular, 1. / 60},
		"arcsec":  {Angular, 1. / 3600},
		"rev":     {Angular, 360},
		"turn":    {Angular, 360},
	}
)

// ParseError is generated when a string cannot be understood as a physical
// quantity of the required kind
type ParseError struct {
	// Input is the text that failed to parse
	Input string

	// Reason is a short description of what was wrong with it
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as a physical quantity: %s", e.Input, e.Reason)
}

// Quantity is a parsed amount and its unit
type Quantity struct {
	Value float64
	Unit  string
	Kind  Kind
}

// In returns the value of q expressed in the given unit
func (q Quantity) In(symbol string) (float64, error) {
	u, ok := table[symbol]
	if !ok {
		return 0, &ParseError{Input: symbol, Reason: "unknown unit"}
	}
	if u.kind != q.Kind {
		return 0, &ParseError{Input: symbol, Reason: fmt.Sprintf("unit is %s, quantity is %s", u.kind.dimension(), q.Kind.dimension())}
	}
	from := table[q.Unit]
	return q.Value * from.factor / u.factor, nil
}

// Known returns true if symbol is a unit of the given kind
func Known(symbol string, k Kind) bool {
	u, ok := table[symbol]
	return ok && u.kind == k
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// splitNumber separates the leading decimal number of s from what follows it.
// num is empty if s does not begin with a number.
func splitNumber(s string) (num, rest string) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return "", s
	}
	// an exponent only counts if digits follow the e
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return s[:i], s[i:]
}

// Parse reads a quantity such as "2cm", "-0.5 mm" or "1e3um".  The unit is
// required.
func Parse(s string) (Quantity, error) {
	in := strings.TrimSpace(s)
	num, rest := splitNumber(in)
	if num == "" {
		return Quantity{}, &ParseError{Input: s, Reason: "does not begin with a number"}
	}
	sym := strings.TrimSpace(rest)
	if sym == "" {
		return Quantity{}, &ParseError{Input: s, Reason: "missing unit"}
	}
	u, ok := table[sym]
	if !ok {
		return Quantity{}, &ParseError{Input: s, Reason: fmt.Sprintf("unknown unit %q", sym)}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Quantity{}, &ParseError{Input: s, Reason: err.Error()}
	}
	return Quantity{Value: f, Unit: sym, Kind: u.kind}, nil
}

func checkStepSize(stepSize float64) error {
	if stepSize <= 0 || math.IsNaN(stepSize) || math.IsInf(stepSize, 0) {
		return ErrBadStepSize
	}
	return nil
}

// toBase converts q to the base unit of k, failing if q is the wrong kind
func toBase(q Quantity, input string, k Kind) (float64, error) {
	if q.Kind != k {
		return 0, &ParseError{Input: input, Reason: fmt.Sprintf("%s is %s, expected %s", q.Unit, q.Kind.dimension(), k.dimension())}
	}
	return q.In(k.Base())
}

// ToSteps converts amount to a number of motor steps.
//
// amount may carry its own unit ("2cm"); if it does not parse as a quantity on
// its own, fallback is appended and it is parsed again ("2" + "mm").  The
// amount is converted to the base unit of kind, divided by stepSize, and
// truncated toward zero.  Negative amounts stay negative.
func ToSteps(amount, fallback string, kind Kind, stepSize float64) (int, error) {
	if err := checkStepSize(stepSize); err != nil {
		return 0, err
	}
	q, err := Parse(amount)
	if err != nil {
		q, err = Parse(amount + fallback)
		if err != nil {
			return 0, err
		}
	}
	base, err := toBase(q, amount, kind)
	if err != nil {
		return 0, err
	}
	steps := math.Trunc(base / stepSize)
	if steps > math.MaxInt32 || steps < math.MinInt32 {
		return 0, &ParseError{Input: amount, Reason: fmt.Sprintf("%g steps is beyond the controller range", steps)}
	}
	return int(steps), nil
}

// ToPhysical converts a step count to the given display unit, formatted with
// three decimal digits
func ToPhysical(steps int, kind Kind, stepSize float64, unit string) (string, error) {
	if err := checkStepSize(stepSize); err != nil {
		return "", err
	}
	q := Quantity{Value: float64(steps) * stepSize, Unit: kind.Base(), Kind: kind}
	v, err := q.In(unit)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', 3, 64), nil
}
