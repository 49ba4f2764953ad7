// Package assaytest builds synthetic plate-reader exports for tests. Each
// builder inverts the unit conversions so the generated slopes correspond to
// known kinetic or thermostability parameters.
package assaytest

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
)

// Grid is a sparse cell map rendered as a header-less CSV.
type Grid struct {
	Rows, Cols int
	cells      map[[2]int]string
}

// NewGrid returns an empty grid of the given size.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, cells: map[[2]int]string{}}
}

// Set writes a cell, growing the grid when needed.
func (g *Grid) Set(r, c int, v string) *Grid {
	if r >= g.Rows {
		g.Rows = r + 1
	}
	if c >= g.Cols {
		g.Cols = c + 1
	}
	g.cells[[2]int{r, c}] = v
	return g
}

// SetFloat writes a number with full round-trip precision.
func (g *Grid) SetFloat(r, c int, v float64) *Grid {
	return g.Set(r, c, strconv.FormatFloat(v, 'g', -1, 64))
}

// CSV renders the grid with every row padded to the full width.
func (g *Grid) CSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for r := 0; r < g.Rows; r++ {
		rec := make([]string, g.Cols)
		for c := 0; c < g.Cols; c++ {
			rec[c] = g.cells[[2]int{r, c}]
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}

// Kinetic describes a kinetic plate export generated from exact
// Michaelis-Menten rates.
type Kinetic struct {
	Kcat      float64
	KM        float64
	SlopeUnit string
	YieldUnit string
	Yield     string
	Dilution  string
	// Blank lists well indexes (0..23, row-major) left empty.
	Blank []int
	// Noise, when set, multiplies the slope of well i by (1 + Noise(i)).
	Noise func(i int) float64
}

// DefaultKinetic is a well-behaved sheet: K_M inside the sampled range.
func DefaultKinetic() Kinetic {
	return Kinetic{
		Kcat:      600,
		KM:        4,
		SlopeUnit: "(mM/s)",
		YieldUnit: "(mg/mL)",
		Yield:     "2.0",
		Dilution:  "10",
	}
}

// Kobs returns the exact observed rate constant for each ladder well.
func (k Kinetic) Kobs() []float64 {
	out := make([]float64, len(assay.SubstrateLadder))
	for i, s := range assay.SubstrateLadder {
		out[i] = k.Kcat * s / (k.KM + s)
	}
	return out
}

// Slopes returns the raw instrument slopes that normalize back to Kobs.
func (k Kinetic) Slopes() []float64 {
	yield, _ := strconv.ParseFloat(strings.TrimSpace(k.Yield), 64)
	dil, _ := strconv.ParseFloat(strings.TrimSpace(k.Dilution), 64)
	cEnz := assay.EnzymeMolar(assay.UnitContext{YieldUnit: k.YieldUnit, Yield: yield, Dilution: dil})
	kobs := k.Kobs()
	out := make([]float64, len(kobs))
	for i, v := range kobs {
		s := v * cEnz * assay.EnzymeVolume * assay.EpsilonByproduct * assay.AssayPathLength / assay.AssayVolume
		if strings.HasSuffix(k.SlopeUnit, "/s)") {
			s /= 60
		}
		if strings.Contains(k.SlopeUnit, "10^-3") {
			s *= 1000
		}
		if k.Noise != nil {
			s *= 1 + k.Noise(i)
		}
		out[i] = s
	}
	return out
}

// Grid lays the sheet out the way the plate reader exports it.
func (k Kinetic) Grid() *Grid {
	g := NewGrid(12, 8)
	g.Set(0, 0, "Kinetic assay")
	g.Set(1, 2, "Well").Set(1, 4, k.SlopeUnit).Set(1, 6, k.YieldUnit).Set(1, 7, "Dilution")
	g.Set(2, 6, k.Yield).Set(2, 7, k.Dilution)
	g.Set(3, 2, "Rep 1").Set(3, 3, "Rep 2").Set(3, 4, "Rep 3")
	blank := map[int]bool{}
	for _, i := range k.Blank {
		blank[i] = true
	}
	for i, s := range k.Slopes() {
		r, c := 4+i/3, 2+i%3
		if c == 2 {
			g.Set(r, 0, string(rune('A'+i/3)))
		}
		if blank[i] {
			continue
		}
		g.SetFloat(r, c, s)
	}
	return g
}

// CSV renders the kinetic sheet.
func (k Kinetic) CSV() []byte { return k.Grid().CSV() }

// Logistic evaluates the thermostability curve 1/(1+exp(-k(T-T50))).
func Logistic(t, k, t50 float64) float64 {
	return 1 / (1 + math.Exp(-k*(t-t50)))
}

// ThermoVertical renders a vertical thermostability export: temperatures in
// column 0 of rows 4..11, three replicate slopes in columns 2..4 and the
// "Row" marker at (2,1). Slopes are scale * logistic(T).
func ThermoVertical(temps []float64, k, t50, scale float64) []byte {
	g := NewGrid(12, 5)
	g.Set(0, 0, "Thermostability")
	g.Set(2, 0, "Temperature").Set(2, 1, "Row").Set(2, 2, "Rep 1").Set(2, 3, "Rep 2").Set(2, 4, "Rep 3")
	for i, t := range temps {
		r := 4 + i
		g.SetFloat(r, 0, t)
		g.Set(r, 1, string(rune('A'+i)))
		for c := 2; c <= 4; c++ {
			g.SetFloat(r, c, scale*Logistic(t, k, t50))
		}
	}
	return g.CSV()
}

// ThermoHorizontal renders a horizontal export: temperatures in row 1,
// columns 3..14, two replicate slopes in rows 4 and 5 beneath each.
func ThermoHorizontal(temps []float64, k, t50, scale float64) []byte {
	g := NewGrid(8, 15)
	g.Set(0, 0, "Thermostability")
	g.Set(1, 0, "Temperature (C)")
	for i, t := range temps {
		c := 3 + i
		g.SetFloat(1, c, t)
		g.SetFloat(4, c, scale*Logistic(t, k, t50))
		g.SetFloat(5, c, scale*Logistic(t, k, t50))
	}
	return g.CSV()
}

// Unrecognized renders a sheet that matches none of the known layouts.
func Unrecognized() []byte {
	g := NewGrid(6, 4)
	g.Set(0, 0, "Sample").Set(0, 1, "Value")
	g.Set(1, 0, "a").Set(1, 1, "1")
	g.Set(2, 0, "b").Set(2, 1, "2")
	return g.CSV()
}
