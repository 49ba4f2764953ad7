package assay

import (
	"fmt"
	"strings"
)

// ScaleSlope converts a slope in the instrument's reported unit to AU/min.
// A "10^-3" prefix divides by 1000 and a per-second label multiplies by 60;
// the two adjustments are independent.
func ScaleSlope(v float64, unit string) float64 {
	if strings.Contains(unit, "10^-3") {
		v /= 1000
	}
	if strings.HasSuffix(unit, "/s)") {
		v *= 60
	}
	return v
}

// EnzymeMolar returns the diluted enzyme concentration in mol/L. An
// unrecognized yield unit yields 0, which ObservedRates reports as a
// division by zero.
func EnzymeMolar(uc UnitContext) float64 {
	diluted := uc.Yield / uc.Dilution
	switch uc.YieldUnit {
	case "A280*":
		return diluted / (EpsilonEnzyme * A280PathLength)
	case "(mg/mL)":
		return diluted / MolarMassEnzyme
	case "(M)":
		return diluted
	case "(mM)":
		return diluted / 1000
	case "(uM)":
		return diluted / 1e6
	}
	return 0
}

// EnzymeMgPerML expresses the diluted enzyme concentration in mg/mL.
func EnzymeMgPerML(uc UnitContext) float64 {
	if uc.YieldUnit == "(mg/mL)" {
		return uc.Yield / uc.Dilution
	}
	return EnzymeMolar(uc) * MolarMassEnzyme
}

// Rates holds the unit-normalized view of a kinetic series.
type Rates struct {
	// Kobs is the observed turnover (1/min) per kept well.
	Kobs []float64
	// EnzymeMolar is the diluted enzyme concentration (M).
	EnzymeMolar float64
}

// ObservedRates converts raw slopes into observed rate constants:
// rate = slope / (eps_byproduct * path), kobs = rate * V_assay / (c_enz * V_enz).
func ObservedRates(slopes []float64, uc UnitContext) (*Rates, error) {
	cEnz := EnzymeMolar(uc)
	if cEnz == 0 {
		return nil, fmt.Errorf("%w: enzyme concentration is zero for yield unit %q (known: A280*, (mg/mL), (M), (mM), (uM))", ErrDivisionByZero, uc.YieldUnit)
	}
	out := &Rates{Kobs: make([]float64, len(slopes)), EnzymeMolar: cEnz}
	for i, s := range slopes {
		rate := ScaleSlope(s, uc.SlopeUnit) / (EpsilonByproduct * AssayPathLength)
		out.Kobs[i] = rate * AssayVolume / (cEnz * EnzymeVolume)
	}
	return out, nil
}

// VelocitiesMM converts observed rate constants into reaction velocities in mM/min.
func VelocitiesMM(kobs []float64, cEnz float64) []float64 {
	out := make([]float64, len(kobs))
	for i, k := range kobs {
		out[i] = k * cEnz * 1000
	}
	return out
}
