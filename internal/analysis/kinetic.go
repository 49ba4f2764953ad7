package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/fit"
)

// KineticFit is the outcome of the three-stage kinetic state machine.
// Kcat, KM, Vmax and their SDs are meaningful only when HighKM is false.
type KineticFit struct {
	Kcat, KcatSD             float64
	KM, KMSD                 float64
	Vmax, VmaxSD             float64
	KcatOverKM, KcatOverKMSD float64
	HighKM                   bool

	Primary *fit.Result
	Linear  *fit.Result

	Reciprocal ReciprocalFit

	S           []float64
	Kobs        []float64
	EnzymeMolar float64
}

// ReciprocalFit is the Lineweaver-Burk diagnostic fit. InvS and InvV hold
// every usable reciprocal point; the fit used the first len(InvS)-Removed.
type ReciprocalFit struct {
	InvS, InvV []float64
	InvVmax    float64
	KM         float64
	Removed    int
	Attempts   int
	// Fallback is set when every truncation failed and the parameters are zero.
	Fallback bool
}

// Used returns the prefix of reciprocal points the fit was computed on.
func (r ReciprocalFit) Used() (invS, invV []float64) {
	n := len(r.InvS) - r.Removed
	if n < 0 {
		n = 0
	}
	return r.InvS[:n], r.InvV[:n]
}

// KineticFitter runs the Michaelis-Menten fit, the high-KM linear branch and
// the truncating Lineweaver-Burk fit.
type KineticFitter struct {
	Solve fit.Solver
	Log   *slog.Logger
}

func (f KineticFitter) solver() fit.Solver {
	if f.Solve != nil {
		return f.Solve
	}
	return fit.Default
}

func (f KineticFitter) log() *slog.Logger {
	if f.Log != nil {
		return f.Log
	}
	return discard
}

// Fit fits observed rate constants kobs (1/min) against substrate s (mM).
// cEnz is the diluted enzyme concentration in mol/L.
func (f KineticFitter) Fit(s, kobs []float64, cEnz float64) (*KineticFit, error) {
	solve := f.solver()
	lg := f.log()
	out := &KineticFit{S: s, Kobs: kobs, EnzymeMolar: cEnz}

	p0 := []float64{maxOf(kobs), 3}
	primary, err := solve(MichaelisMenten, s, kobs, p0, fit.NonNegative(2))
	if err != nil {
		return nil, &assay.FitError{Stage: MichaelisMenten.Name, Err: err}
	}
	out.Primary = primary
	out.Kcat, out.KM = primary.Params[0], primary.Params[1]
	out.KcatSD, out.KMSD = primary.SD[0], primary.SD[1]
	if out.KM <= 0 {
		return nil, fmt.Errorf("%w: fitted KM is %g, kcat/KM is undefined", assay.ErrInvalidFit, out.KM)
	}
	out.KcatOverKM = out.Kcat / out.KM
	out.KcatOverKMSD = out.KcatOverKM * math.Sqrt(sq(out.KcatSD/out.Kcat)+sq(out.KMSD/out.KM))
	out.Vmax = out.Kcat * cEnz * 1000
	out.VmaxSD = out.KcatSD * cEnz * 1000
	lg.Debug("primary fit", "kcat", out.Kcat, "KM", out.KM, "kcat_SD", out.KcatSD, "KM_SD", out.KMSD,
		"iterations", primary.Iterations, "reason", primary.Reason)

	if out.KM > assay.HighKMThreshold {
		out.HighKM = true
		lin, err := solve(HighKMLinear, s, kobs, []float64{out.KcatOverKM}, fit.NonNegative(1))
		if err != nil {
			return nil, &assay.FitError{Stage: HighKMLinear.Name, Err: err}
		}
		out.Linear = lin
		out.KcatOverKM, out.KcatOverKMSD = lin.Params[0], lin.SD[0]
		lg.Debug("high KM branch", "KM", out.KM, "kcat_over_KM", out.KcatOverKM, "kcat_over_KM_SD", out.KcatOverKMSD)
	}

	out.Reciprocal = f.reciprocal(out)
	return out, nil
}

// reciprocal fits the Lineweaver-Burk line, dropping tail points one at a
// time until a fit converges. The loop makes at most len(InvS) attempts and
// never fails: exhausting them yields zero parameters with Fallback set.
func (f KineticFitter) reciprocal(k *KineticFit) ReciprocalFit {
	lg := f.log()
	var rf ReciprocalFit
	v := assay.VelocitiesMM(k.Kobs, k.EnzymeMolar)
	for i := range k.S {
		if k.S[i] > 0 && v[i] > 0 {
			rf.InvS = append(rf.InvS, 1/k.S[i])
			rf.InvV = append(rf.InvV, 1/v[i])
		}
	}

	var p0 []float64
	if !k.HighKM {
		p0 = []float64{1 / k.Vmax, k.KM}
	} else {
		maxS := maxOf(k.S)
		p0 = []float64{1 / (k.KcatOverKM * maxS), maxS}
	}

	solve := f.solver()
	for removed := 0; removed < len(rf.InvS); removed++ {
		n := len(rf.InvS) - removed
		rf.Attempts++
		r, err := solve(LineweaverBurk, rf.InvS[:n], rf.InvV[:n], p0, fit.NonNegative(2))
		if err != nil {
			lg.Debug("reciprocal fit attempt failed", "points", n, "error", err)
			continue
		}
		rf.InvVmax, rf.KM = r.Params[0], r.Params[1]
		rf.Removed = removed
		lg.Debug("reciprocal fit", "inv_vmax", rf.InvVmax, "KM", rf.KM, "removed_points", removed)
		return rf
	}
	rf.Fallback = true
	rf.Removed = 0
	lg.Debug("reciprocal fit fell back to zero parameters", "attempts", rf.Attempts)
	return rf
}

func maxOf(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func sq(x float64) float64 { return x * x }
