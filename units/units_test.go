package units_test

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/nasa-jpl/mercury/units"
)

func ExampleToSteps() {
	steps, _ := units.ToSteps("1mm", "mm", units.Linear, 18)
	fmt.Println(steps)
	// Output: 55
}

func ExampleToPhysical() {
	pos, _ := units.ToPhysical(55, units.Linear, 18, "mm")
	fmt.Println(pos)
	// Output: 0.990
}

func TestToStepsUsesFallbackUnitForBareNumbers(t *testing.T) {
	steps, err := units.ToSteps("2", "mm", units.Linear, 1)
	if err != nil {
		t.Fatal(err)
	}
	if steps != 2000 {
		t.Errorf("expected 2 mm at 1 um/step to be 2000 steps, got %d", steps)
	}
}

func TestToStepsPrefersLiteralUnit(t *testing.T) {
	steps, err := units.ToSteps("2cm", "mm", units.Linear, 18)
	if err != nil {
		t.Fatal(err)
	}
	if steps != 1111 {
		t.Errorf("expected 20000/18 truncated = 1111, got %d", steps)
	}
}

func TestToStepsPreservesSign(t *testing.T) {
	steps, err := units.ToSteps("-2cm", "mm", units.Linear, 18)
	if err != nil {
		t.Fatal(err)
	}
	if steps != -1111 {
		t.Errorf("expected truncation toward zero to give -1111, got %d", steps)
	}
}

func TestToStepsAcceptsSpaceBeforeUnit(t *testing.T) {
	steps, err := units.ToSteps(" 0.5 mm ", "um", units.Linear, 10)
	if err != nil {
		t.Fatal(err)
	}
	if steps != 50 {
		t.Errorf("expected 50 steps, got %d", steps)
	}
}

func TestToStepsAngular(t *testing.T) {
	cases := []struct {
		amount   string
		fallback string
		step     float64
		expected int
	}{
		{"1.5deg", "deg", 0.5, 3},
		{"90", "deg", 0.25, 360},
		{"1rad", "deg", 1, 57},
		{"-1rev", "deg", 2, -180},
		{"30arcmin", "deg", 0.125, 4},
	}
	for _, c := range cases {
		steps, err := units.ToSteps(c.amount, c.fallback, units.Angular, c.step)
		if err != nil {
			t.Errorf("%s: %v", c.amount, err)
			continue
		}
		if steps != c.expected {
			t.Errorf("%s at %g deg/step: expected %d steps, got %d", c.amount, c.step, c.expected, steps)
		}
	}
}

func TestToStepsRejectsGarbage(t *testing.T) {
	for _, amount := range []string{"banana", "", "mm", "2 bananas", "--3mm"} {
		_, err := units.ToSteps(amount, "mm", units.Linear, 18)
		var perr *units.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%q: expected a ParseError, got %v", amount, err)
		}
	}
}

func TestToStepsRejectsWrongKind(t *testing.T) {
	_, err := units.ToSteps("2deg", "mm", units.Linear, 18)
	var perr *units.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected an angle on a linear stage to be a ParseError, got %v", err)
	}
	_, err = units.ToSteps("2mm", "deg", units.Angular, 1)
	if !errors.As(err, &perr) {
		t.Fatalf("expected a length on an angular stage to be a ParseError, got %v", err)
	}
}

func TestToStepsRejectsBadStepSize(t *testing.T) {
	for _, step := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := units.ToSteps("1mm", "mm", units.Linear, step)
		if !errors.Is(err, units.ErrBadStepSize) {
			t.Errorf("step size %g: expected ErrBadStepSize, got %v", step, err)
		}
	}
}

func TestToPhysicalFormatsThreeDecimals(t *testing.T) {
	cases := []struct {
		steps    int
		kind     units.Kind
		step     float64
		unit     string
		expected string
	}{
		{0, units.Linear, 18, "mm", "0.000"},
		{-1111, units.Linear, 18, "cm", "-2.000"},
		{360, units.Angular, 0.25, "deg", "90.000"},
		{1000, units.Linear, 1, "um", "1000.000"},
	}
	for _, c := range cases {
		out, err := units.ToPhysical(c.steps, c.kind, c.step, c.unit)
		if err != nil {
			t.Errorf("%d steps: %v", c.steps, err)
			continue
		}
		if out != c.expected {
			t.Errorf("%d steps of %g in %s: expected %s, got %s", c.steps, c.step, c.unit, c.expected, out)
		}
	}
}

func TestToPhysicalRejectsWrongKindUnit(t *testing.T) {
	if _, err := units.ToPhysical(10, units.Angular, 1, "mm"); err == nil {
		t.Error("expected converting degrees to mm to fail")
	}
	if _, err := units.ToPhysical(10, units.Linear, 1, "parsec"); err == nil {
		t.Error("expected an unknown display unit to fail")
	}
}

func TestRoundTripWithinOneStep(t *testing.T) {
	const step = 18. // um
	for _, mm := range []float64{0, 0.001, 0.5, 1, 2.345, 10, -3.21, -0.017} {
		amount := strconv.FormatFloat(mm, 'f', -1, 64)
		steps, err := units.ToSteps(amount, "mm", units.Linear, step)
		if err != nil {
			t.Fatalf("%s: %v", amount, err)
		}
		back, err := units.ToPhysical(steps, units.Linear, step, "mm")
		if err != nil {
			t.Fatal(err)
		}
		f, err := strconv.ParseFloat(back, 64)
		if err != nil {
			t.Fatal(err)
		}
		// one step plus the 3 digit display rounding
		tol := step/1000 + 0.0005
		if math.Abs(f-mm) > tol {
			t.Errorf("%s mm round tripped to %s mm, off by more than one step", amount, back)
		}
	}
}

func TestParse(t *testing.T) {
	q, err := units.Parse("1e3um")
	if err != nil {
		t.Fatal(err)
	}
	mm, err := q.In("mm")
	if err != nil {
		t.Fatal(err)
	}
	if mm != 1 {
		t.Errorf("expected 1e3 um to be 1 mm, got %g", mm)
	}
	if q.Kind != units.Linear {
		t.Errorf("expected um to be linear, got %s", q.Kind)
	}
}

func TestKnown(t *testing.T) {
	if !units.Known("mm", units.Linear) {
		t.Error("mm should be a known linear unit")
	}
	if units.Known("mm", units.Angular) {
		t.Error("mm should not be an angular unit")
	}
}
