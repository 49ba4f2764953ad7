// Package chart describes fit plots as plain data and renders them to PNG.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Style selects how a series is drawn.
type Style string

const (
	Points Style = "points"
	Line   Style = "line"
	Dashed Style = "dashed"
	Dotted Style = "dotted"
)

// Series is one named set of points.
type Series struct {
	Name  string    `json:"name,omitempty"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Style Style     `json:"style"`
	Color string    `json:"color,omitempty"` // black, blue, red, gray
}

// Range is a closed axis interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Spec is a renderer-independent chart description.
type Spec struct {
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	XRange *Range   `json:"x_range,omitempty"`
	YRange *Range   `json:"y_range,omitempty"`
	Series []Series `json:"series"`
}

// Size is the output image size in pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultSize matches a 5x5 inch figure at 100 dpi.
var DefaultSize = Size{Width: 500, Height: 500}

// Render draws spec as a PNG into w.
func Render(spec Spec, size Size, w io.Writer) error {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	var series []gochart.Series
	for _, s := range spec.Series {
		xs, ys := finitePairs(s.X, s.Y)
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0])
			ys = append(ys, ys[0])
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   seriesStyle(s),
		})
	}
	if len(series) == 0 {
		return fmt.Errorf("render %q: no finite data", spec.Title)
	}
	xr := spec.XRange
	if xr == nil {
		xr = dataRange(spec.Series, func(s Series) []float64 { return s.X })
	}
	yr := spec.YRange
	if yr == nil {
		yr = dataRange(spec.Series, func(s Series) []float64 { return s.Y })
	}
	ch := gochart.Chart{
		Title:      spec.Title,
		Width:      size.Width,
		Height:     size.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: spec.XLabel, Range: &gochart.ContinuousRange{Min: xr.Min, Max: xr.Max}},
		YAxis:      gochart.YAxis{Name: spec.YLabel, Range: &gochart.ContinuousRange{Min: yr.Min, Max: yr.Max}},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render %q: %w", spec.Title, err)
	}
	return nil
}

// RenderBase64 renders spec and returns the PNG as standard base64.
func RenderBase64(spec Spec, size Size) (string, error) {
	var buf bytes.Buffer
	if err := Render(spec, size, &buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Linspace returns n evenly spaced values from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + step*float64(i)
	}
	out[n-1] = b
	return out
}

func seriesStyle(s Series) gochart.Style {
	col := color(s.Color)
	switch s.Style {
	case Points:
		return gochart.Style{StrokeWidth: gochart.Disabled, DotWidth: 4, DotColor: col}
	case Dashed:
		return gochart.Style{StrokeColor: col, StrokeWidth: 1.5, StrokeDashArray: []float64{6, 4}}
	case Dotted:
		return gochart.Style{StrokeColor: col, StrokeWidth: 1.5, StrokeDashArray: []float64{1.5, 3}}
	}
	return gochart.Style{StrokeColor: col, StrokeWidth: 1.5}
}

func color(name string) drawing.Color {
	switch name {
	case "blue":
		return gochart.ColorBlue
	case "red":
		return gochart.ColorRed
	case "gray", "grey":
		return gochart.ColorAlternateGray
	}
	return gochart.ColorBlack
}

func finitePairs(x, y []float64) ([]float64, []float64) {
	n := min(len(x), len(y))
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	return xs, ys
}

// dataRange spans every finite value with 5% padding on each side.
func dataRange(series []Series, pick func(Series) []float64) *Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range pick(s) {
			if !isFinite(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return &Range{Min: 0, Max: 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 0.5)
	}
	return &Range{Min: lo - pad, Max: hi + pad}
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
