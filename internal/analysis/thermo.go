package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/fit"
)

// Logistic parameter box for thermostability fits.
var thermoBounds = fit.Bounds{Lower: []float64{-10, 30}, Upper: []float64{0, 50}}

// ThermoFit is the logistic fit of normalized activity against temperature.
type ThermoFit struct {
	K, KSD     float64
	T50, T50SD float64
	// Normalizer is the mean of the three largest slopes.
	Normalizer float64
	T          []float64
	Normalized []float64
	Result     *fit.Result
}

// ThermoFitter normalizes slopes and fits the logistic curve.
type ThermoFitter struct {
	Solve fit.Solver
	Log   *slog.Logger
}

func (f ThermoFitter) solver() fit.Solver {
	if f.Solve != nil {
		return f.Solve
	}
	return fit.Default
}

func (f ThermoFitter) log() *slog.Logger {
	if f.Log != nil {
		return f.Log
	}
	return discard
}

// Fit normalizes slopes by their top-three mean and fits f(T) with
// p0 = (k=-1, T50=40) inside k ∈ [-10, 0], T50 ∈ [30, 50].
func (f ThermoFitter) Fit(temps, slopes []float64) (*ThermoFit, error) {
	norm, top, err := NormalizeTopThree(slopes)
	if err != nil {
		return nil, err
	}
	r, err := f.solver()(Logistic, temps, norm, []float64{-1, 40}, thermoBounds)
	if err != nil {
		return nil, &assay.FitError{Stage: Logistic.Name, Err: err}
	}
	out := &ThermoFit{
		K: r.Params[0], KSD: r.SD[0],
		T50: r.Params[1], T50SD: r.SD[1],
		Normalizer: top,
		T:          temps,
		Normalized: norm,
		Result:     r,
	}
	f.log().Debug("logistic fit", "T50", out.T50, "T50_SD", out.T50SD, "k", out.K, "k_SD", out.KSD,
		"normalizer", top, "iterations", r.Iterations, "reason", r.Reason)
	return out, nil
}

// NormalizeTopThree divides every slope by the mean of the three largest
// (all of them when fewer than three are present).
func NormalizeTopThree(slopes []float64) ([]float64, float64, error) {
	if len(slopes) == 0 {
		return nil, 0, fmt.Errorf("%w: no slopes to normalize", assay.ErrNoValidData)
	}
	sorted := append([]float64(nil), slopes...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	n := 3
	if len(sorted) < n {
		n = len(sorted)
	}
	var sum float64
	for _, v := range sorted[:n] {
		sum += v
	}
	top := sum / float64(n)
	if top == 0 || math.IsNaN(top) || math.IsInf(top, 0) {
		return nil, 0, fmt.Errorf("%w: mean of the largest slopes is %g", assay.ErrDivisionByZero, top)
	}
	out := make([]float64, len(slopes))
	for i, v := range slopes {
		out[i] = v / top
	}
	return out, top, nil
}
