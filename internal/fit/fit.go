// Package fit implements bounded nonlinear least squares for small models:
// a projected Levenberg-Marquardt solver plus the covariance estimate used
// to report parameter standard deviations.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoConvergence is returned when the iteration limit is reached.
	ErrNoConvergence = errors.New("did not converge")
	// ErrInsufficientData is returned when there are fewer points than parameters.
	ErrInsufficientData = errors.New("fewer data points than parameters")
	// ErrNonFinite is returned when the model cannot be evaluated at the start point.
	ErrNonFinite = errors.New("model is not finite at the initial guess")
)

// Func evaluates a model at x for parameters p.
type Func func(x float64, p []float64) float64

// GradFunc writes the partial derivatives of a model at x into g.
type GradFunc func(x float64, p []float64, g []float64)

// Model is a one-dimensional parametric curve. Grad is optional; without it
// the Jacobian is estimated by forward differences.
type Model struct {
	Name string
	F    Func
	Grad GradFunc
}

// Bounds are per-parameter box constraints. A nil slice means unbounded on that side.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// NonNegative bounds n parameters to [0, +Inf).
func NonNegative(n int) Bounds {
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := range hi {
		hi[i] = math.Inf(1)
	}
	return Bounds{Lower: lo, Upper: hi}
}

func (b Bounds) lower(i int) float64 {
	if b.Lower == nil {
		return math.Inf(-1)
	}
	return b.Lower[i]
}

func (b Bounds) upper(i int) float64 {
	if b.Upper == nil {
		return math.Inf(1)
	}
	return b.Upper[i]
}

func (b Bounds) validate(n int) error {
	if b.Lower != nil && len(b.Lower) != n {
		return fmt.Errorf("lower bounds: got %d values for %d parameters", len(b.Lower), n)
	}
	if b.Upper != nil && len(b.Upper) != n {
		return fmt.Errorf("upper bounds: got %d values for %d parameters", len(b.Upper), n)
	}
	for i := 0; i < n; i++ {
		if b.lower(i) >= b.upper(i) {
			return fmt.Errorf("bounds for parameter %d are empty: [%g, %g]", i, b.lower(i), b.upper(i))
		}
	}
	return nil
}

// Options tune the solver. Zero values select the defaults.
type Options struct {
	MaxIterations int
	FTol          float64
	XTol          float64
	GTol          float64
}

// DefaultOptions mirrors the tolerances of common least-squares packages.
func DefaultOptions() Options {
	return Options{MaxIterations: 1000, FTol: 1e-8, XTol: 1e-8, GTol: 1e-8}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.FTol <= 0 {
		o.FTol = d.FTol
	}
	if o.XTol <= 0 {
		o.XTol = d.XTol
	}
	if o.GTol <= 0 {
		o.GTol = d.GTol
	}
	return o
}

// Result is an immutable fit outcome.
type Result struct {
	Params []float64
	// Cov is the parameter covariance; entries are +Inf when it cannot be estimated.
	Cov [][]float64
	// SD is the square root of the covariance diagonal.
	SD         []float64
	Cost       float64 // half the sum of squared residuals
	Iterations int
	// Reason names the criterion that stopped the solver.
	Reason string
}

// Solver fits a model to data. CurveFit is the production implementation;
// callers accept a Solver so tests can script failures.
type Solver func(m Model, x, y, p0 []float64, b Bounds) (*Result, error)

// Default is CurveFit with DefaultOptions.
func Default(m Model, x, y, p0 []float64, b Bounds) (*Result, error) {
	return CurveFit(m, x, y, p0, b, DefaultOptions())
}

// CurveFit minimizes sum((F(x_i, p) - y_i)^2) subject to b, starting at p0.
func CurveFit(m Model, x, y, p0 []float64, b Bounds, opt Options) (*Result, error) {
	n := len(p0)
	if len(x) != len(y) {
		return nil, fmt.Errorf("%s: x and y lengths differ (%d vs %d)", m.Name, len(x), len(y))
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: no parameters", m.Name)
	}
	if len(x) < n {
		return nil, fmt.Errorf("%s: %w (%d < %d)", m.Name, ErrInsufficientData, len(x), n)
	}
	if err := b.validate(n); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	opt = opt.withDefaults()

	p := make([]float64, n)
	for i := range p0 {
		p[i] = strictlyFeasible(p0[i], b.lower(i), b.upper(i))
	}
	res := make([]float64, len(x))
	cost, ok := evalCost(m, x, y, p, res)
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrNonFinite)
	}

	jac := mat.NewDense(len(x), n, nil)
	trial := make([]float64, n)
	trialRes := make([]float64, len(x))
	lambda := 1e-3
	iter := 0
	reason := ""
	for reason == "" {
		if iter >= opt.MaxIterations {
			return nil, fmt.Errorf("%s: %w after %d iterations", m.Name, ErrNoConvergence, iter)
		}
		iter++
		if cost == 0 {
			reason = "exact"
			break
		}
		jacobian(m, x, p, b, jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(len(res), res))
		if projectedGradNorm(g.RawVector().Data, p, b) <= opt.GTol {
			reason = "gtol"
			break
		}
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)

		accepted := false
		for !accepted {
			step, err := lmStep(&jtj, &g, lambda)
			if err == nil {
				for i := range p {
					trial[i] = clamp(p[i]+step[i], b.lower(i), b.upper(i))
				}
				if c, ok := evalCost(m, x, y, trial, trialRes); ok && c < cost {
					dx := make([]float64, n)
					floats.SubTo(dx, trial, p)
					reduction := cost - c
					xnorm := floats.Norm(p, 2)
					copy(p, trial)
					copy(res, trialRes)
					prev := cost
					cost = c
					lambda = math.Max(lambda/10, 1e-15)
					accepted = true
					switch {
					case reduction <= opt.FTol*prev:
						reason = "ftol"
					case floats.Norm(dx, 2) <= opt.XTol*(opt.XTol+xnorm):
						reason = "xtol"
					}
					continue
				}
			}
			lambda *= 10
			if lambda > 1e16 {
				// no descent direction left inside the box
				reason = "stalled"
				break
			}
			iter++
			if iter >= opt.MaxIterations {
				return nil, fmt.Errorf("%s: %w after %d iterations", m.Name, ErrNoConvergence, iter)
			}
		}
	}

	jacobian(m, x, p, b, jac)
	cov := covariance(jac, cost, len(x), n)
	sd := make([]float64, n)
	for i := range sd {
		sd[i] = math.Sqrt(cov[i][i])
	}
	return &Result{Params: p, Cov: cov, SD: sd, Cost: cost, Iterations: iter, Reason: reason}, nil
}

// lmStep solves (JᵀJ + λ·diag(JᵀJ)) δ = -Jᵀr.
func lmStep(jtj *mat.Dense, g *mat.VecDense, lambda float64) ([]float64, error) {
	n, _ := jtj.Dims()
	var a mat.Dense
	a.CloneFrom(jtj)
	for i := 0; i < n; i++ {
		d := jtj.At(i, i)
		if d < 1e-12 {
			d = 1e-12
		}
		a.Set(i, i, jtj.At(i, i)+lambda*d)
	}
	var rhs mat.VecDense
	rhs.ScaleVec(-1, g)
	var step mat.VecDense
	if err := step.SolveVec(&a, &rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	out := step.RawVector().Data
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("singular step")
		}
	}
	return out, nil
}

func evalCost(m Model, x, y, p, res []float64) (float64, bool) {
	var ssr float64
	for i := range x {
		r := m.F(x[i], p) - y[i]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, false
		}
		res[i] = r
		ssr += r * r
	}
	return 0.5 * ssr, true
}

// jacobian fills J with dF/dp at every x, analytically when the model
// provides a gradient.
func jacobian(m Model, x, p []float64, b Bounds, jac *mat.Dense) {
	n := len(p)
	g := make([]float64, n)
	if m.Grad != nil {
		for i, xi := range x {
			m.Grad(xi, p, g)
			jac.SetRow(i, g)
		}
		return
	}
	h := make([]float64, n)
	for j := range p {
		h[j] = math.Sqrt(2.220446049250313e-16) * math.Max(1, math.Abs(p[j]))
		if p[j]+h[j] > b.upper(j) {
			h[j] = -h[j]
		}
	}
	pp := make([]float64, n)
	for i, xi := range x {
		f0 := m.F(xi, p)
		for j := range p {
			copy(pp, p)
			pp[j] += h[j]
			jac.Set(i, j, (m.F(xi, pp)-f0)/h[j])
		}
	}
}

// projectedGradNorm is the infinity norm of the gradient with components
// that push an active bound outward removed.
func projectedGradNorm(g, p []float64, b Bounds) float64 {
	var norm float64
	for i, gi := range g {
		if p[i] <= b.lower(i) && gi > 0 {
			continue
		}
		if p[i] >= b.upper(i) && gi < 0 {
			continue
		}
		norm = math.Max(norm, math.Abs(gi))
	}
	return norm
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// strictlyFeasible nudges a start value off an active bound so the first
// step can move in both directions.
func strictlyFeasible(v, lo, hi float64) float64 {
	const rstep = 1e-10
	switch {
	case v <= lo:
		return lo + rstep*math.Max(1, math.Abs(lo))
	case v >= hi:
		return hi - rstep*math.Max(1, math.Abs(hi))
	}
	return v
}
