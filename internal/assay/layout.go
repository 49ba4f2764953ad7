package assay

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/assayfit-cli/internal/table"
)

// LayoutKind identifies which instrument export a table came from.
type LayoutKind int

const (
	LayoutUnknown LayoutKind = iota
	KineticAssay
	ThermoVertical
	ThermoHorizontal
)

func (k LayoutKind) String() string {
	switch k {
	case KineticAssay:
		return "kinetic"
	case ThermoVertical:
		return "thermo-vertical"
	case ThermoHorizontal:
		return "thermo-horizontal"
	}
	return "unknown"
}

// IsThermo reports whether the layout carries a temperature series.
func (k LayoutKind) IsThermo() bool {
	return k == ThermoVertical || k == ThermoHorizontal
}

// ParseLayoutKind accepts the String form plus the short aliases used on the
// command line.
func ParseLayoutKind(s string) (LayoutKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kinetic", "kinetics":
		return KineticAssay, nil
	case "thermo-vertical", "vertical":
		return ThermoVertical, nil
	case "thermo-horizontal", "horizontal":
		return ThermoHorizontal, nil
	}
	return LayoutUnknown, fmt.Errorf("unknown layout: %s (use kinetic, thermo-vertical or thermo-horizontal)", s)
}

// Detect classifies a table by probing fixed cells. Probes run in a fixed
// order and the first match wins; a table matching none of them is rejected.
// Kinetic exports are keyed on the yield-unit label at (1,6); a number at
// (1,4) is a horizontal temperature header, not a slope-unit label.
func Detect(t *table.RawTable) (LayoutKind, error) {
	if isLabel(t, 1, 6) {
		if _, temp := t.Number(1, 4); !temp {
			return KineticAssay, nil
		}
	}
	if t.Text(2, 1) == "Row" {
		return ThermoVertical, nil
	}
	for c := horizFirstCol; c <= horizLastCol; c++ {
		if _, ok := t.Number(horizHeaderRow, c); ok {
			return ThermoHorizontal, nil
		}
	}
	return LayoutUnknown, fmt.Errorf("%w: no yield-unit label at (1,6), no \"Row\" marker at (2,1), no temperature header in row 1", ErrUnrecognizedLayout)
}

// isLabel reports whether cell (r,c) holds non-numeric text.
func isLabel(t *table.RawTable, r, c int) bool {
	if t.Blank(r, c) {
		return false
	}
	_, num := t.Number(r, c)
	return !num
}
