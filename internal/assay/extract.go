package assay

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/assayfit-cli/internal/table"
)

// Series is the paired data pulled out of a plate export. X is substrate
// concentration (mM) or temperature (°C); Y is the raw slope in instrument
// units. Mask has one entry per candidate well, true where the pair was kept,
// so callers can map a kept point back to its position on the plate.
type Series struct {
	X        []float64
	Y        []float64
	Mask     []bool
	Warnings []string
}

// Len returns the number of kept pairs.
func (s *Series) Len() int { return len(s.X) }

func (s *Series) keep(x, y float64) {
	s.X = append(s.X, x)
	s.Y = append(s.Y, y)
	s.Mask = append(s.Mask, true)
}

func (s *Series) skip() { s.Mask = append(s.Mask, false) }

func (s *Series) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Extract pulls the (x, slope) series for the given layout. Any pair with a
// blank or non-numeric value on either axis is dropped together, as is any
// pair with a negative x. An empty result is ErrNoValidData.
func Extract(t *table.RawTable, kind LayoutKind) (*Series, error) {
	var s *Series
	switch kind {
	case KineticAssay:
		s = extractKinetic(t)
	case ThermoVertical:
		s = extractVertical(t)
	case ThermoHorizontal:
		s = extractHorizontal(t)
	default:
		return nil, fmt.Errorf("%w: cannot extract layout %s", ErrUnrecognizedLayout, kind)
	}
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: no numeric %s pairs in the data block", ErrNoValidData, kind)
	}
	return s, nil
}

func extractKinetic(t *table.RawTable) *Series {
	s := &Series{}
	i := 0
	for r := dataFirstRow; r <= dataLastRow; r++ {
		for c := dataFirstCol; c <= dataLastCol; c++ {
			x := SubstrateLadder[i]
			i++
			y, ok := t.Number(r, c)
			if !ok {
				s.skip()
				continue
			}
			s.keep(x, y)
		}
	}
	return s
}

func extractVertical(t *table.RawTable) *Series {
	s := &Series{}
	for r := dataFirstRow; r <= dataLastRow; r++ {
		temp, tok := t.Number(r, 0)
		if !tok && !t.Blank(r, 0) {
			s.warnf("non-numeric temperature %q at (%d,0)", t.Text(r, 0), r)
		}
		for c := dataFirstCol; c <= dataLastCol; c++ {
			y, ok := t.Number(r, c)
			if !tok || !ok {
				s.skip()
				continue
			}
			if temp < 0 {
				s.warnf("negative temperature %g at (%d,0) dropped", temp, r)
				s.skip()
				continue
			}
			s.keep(temp, y)
		}
	}
	return s
}

// extractHorizontal reads one temperature per header column and the two
// replicate slopes beneath it. Header cells that are blank are unused plate
// columns; non-blank headers that do not parse as numbers are skipped with a
// warning rather than guessed at.
func extractHorizontal(t *table.RawTable) *Series {
	s := &Series{}
	for c := horizFirstCol; c <= horizLastCol; c++ {
		temp, tok := t.Number(horizHeaderRow, c)
		if !tok && !t.Blank(horizHeaderRow, c) {
			s.warnf("non-numeric temperature header %q at (%d,%d) skipped", t.Text(horizHeaderRow, c), horizHeaderRow, c)
		}
		for _, r := range []int{dataFirstRow, dataFirstRow + 1} {
			y, ok := t.Number(r, c)
			if !tok || !ok {
				s.skip()
				continue
			}
			if temp < 0 {
				s.warnf("negative temperature %g at (%d,%d) dropped", temp, horizHeaderRow, c)
				s.skip()
				continue
			}
			s.keep(temp, y)
		}
	}
	return s
}

// UnitContext holds the probe cells of a kinetic export that put slopes and
// enzyme yield into common units.
type UnitContext struct {
	SlopeUnit string
	YieldUnit string
	Yield     float64
	Dilution  float64
}

// ReadUnitContext reads slope units (1,4), yield units (1,6), yield (2,6) and
// dilution factor (2,7). Yield and dilution must be positive numbers.
func ReadUnitContext(t *table.RawTable) (UnitContext, error) {
	uc := UnitContext{
		SlopeUnit: t.Text(1, 4),
		YieldUnit: t.Text(1, 6),
	}
	if uc.YieldUnit == "" {
		return uc, &FieldError{Row: 1, Col: 6, Field: "yield units", Reason: "blank"}
	}
	yield, err := positiveCell(t, stripNonASCII(t.Raw(2, 6)), 2, 6, "yield")
	if err != nil {
		return uc, err
	}
	dil, err := positiveCell(t, t.Text(2, 7), 2, 7, "dilution factor")
	if err != nil {
		return uc, err
	}
	uc.Yield, uc.Dilution = yield, dil
	return uc, nil
}

func positiveCell(t *table.RawTable, raw string, r, c int, field string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &FieldError{Row: r, Col: c, Field: field, Reason: "blank"}
	}
	v, ok := t.NumberOf(raw)
	if !ok {
		return 0, &FieldError{Row: r, Col: c, Field: field, Reason: fmt.Sprintf("not a number: %q", raw)}
	}
	if v <= 0 {
		return 0, &FieldError{Row: r, Col: c, Field: field, Reason: fmt.Sprintf("must be positive, got %g", v)}
	}
	return v, nil
}

// stripNonASCII drops bytes outside 7-bit ASCII; spreadsheet yields often
// carry a stray "µ" or non-breaking space pasted in with the value.
func stripNonASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
