package analysis

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/assaytest"
	"github.com/KaramelBytes/assayfit-cli/internal/fit"
)

func near(a, b, rel float64) bool {
	return math.Abs(a-b) <= rel*math.Max(math.Abs(a), math.Abs(b))
}

// failReciprocalAbove lets every fit through except Lineweaver-Burk fits on
// more than n points.
func failReciprocalAbove(n int) fit.Solver {
	return func(m fit.Model, x, y, p0 []float64, b fit.Bounds) (*fit.Result, error) {
		if m.Name == LineweaverBurk.Name && len(x) > n {
			return nil, fmt.Errorf("scripted failure on %d points", len(x))
		}
		return fit.Default(m, x, y, p0, b)
	}
}

func kineticInput(k assaytest.Kinetic) Input {
	return Input{Name: "kinetic.csv", Data: k.CSV(), Label: "X0X"}
}

func TestAnalyze_KineticWellBehaved(t *testing.T) {
	res, err := NewAnalyzer().Analyze(kineticInput(assaytest.DefaultKinetic()))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Label != "WT" {
		t.Fatalf("label = %q, want WT", res.Label)
	}
	if res.Layout != "kinetic" || res.Points != 24 || res.Source != "kinetic.csv" {
		t.Fatalf("unexpected result header: %+v", res)
	}
	k := res.Kinetic
	if k == nil || k.Kcat == nil || k.KM == nil || k.KcatSD == nil || k.KMSD == nil {
		t.Fatalf("expected numeric kcat/KM, got %+v", k)
	}
	if !near(*k.Kcat, 600, 1e-4) || !near(*k.KM, 4, 1e-4) {
		t.Fatalf("kcat=%g KM=%g, want 600 and 4", *k.Kcat, *k.KM)
	}
	if *k.Kcat < 0 || *k.KM < 0 {
		t.Fatalf("negative parameters")
	}
	if k.HighKM {
		t.Fatalf("unexpected high-KM branch")
	}
	if !near(*k.KcatOverKM, 150, 1e-4) {
		t.Fatalf("kcat/KM = %g", *k.KcatOverKM)
	}
	wantVmax := *k.Kcat * k.EnzymeMolar * 1000
	if !near(*k.Vmax, wantVmax, 1e-12) {
		t.Fatalf("vmax = %g, want %g", *k.Vmax, wantVmax)
	}
	if k.Reciprocal.RemovedPoints != 0 || k.Reciprocal.Fallback || k.Reciprocal.Points != 21 {
		t.Fatalf("reciprocal = %+v", k.Reciprocal)
	}
	if !near(*k.Reciprocal.KM, 4, 1e-3) {
		t.Fatalf("reciprocal KM = %g", *k.Reciprocal.KM)
	}
	if _, ok := res.Chart(ChartMenten); !ok {
		t.Fatalf("missing %s", ChartMenten)
	}
	if _, ok := res.Chart(ChartLineweaver); !ok {
		t.Fatalf("missing %s", ChartLineweaver)
	}
	if res.RunID == "" {
		t.Fatalf("missing run id")
	}
}

func TestAnalyze_HighKMNullsIndividualConstants(t *testing.T) {
	k := assaytest.DefaultKinetic()
	k.KM = 120
	res, err := NewAnalyzer().Analyze(kineticInput(k))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	kp := res.Kinetic
	if !kp.HighKM {
		t.Fatalf("expected high-KM branch")
	}
	if kp.Kcat != nil || kp.KM != nil || kp.KcatSD != nil || kp.KMSD != nil || kp.Vmax != nil || kp.VmaxSD != nil {
		t.Fatalf("individual constants must be null: %+v", kp)
	}
	if kp.KcatOverKM == nil || *kp.KcatOverKM <= 0 {
		t.Fatalf("kcat/KM must be populated, got %v", kp.KcatOverKM)
	}
	f := res.Fields()
	if v, ok := f["kcat"].(*float64); !ok || v != nil {
		t.Fatalf("fields kcat = %#v", f["kcat"])
	}
	if v, ok := f["kcat_over_KM"].(*float64); !ok || v == nil {
		t.Fatalf("fields kcat_over_KM = %#v", f["kcat_over_KM"])
	}
	spec, _ := res.Chart(ChartMenten)
	if spec.Title != "WT (Linear Fit)" {
		t.Fatalf("title = %q", spec.Title)
	}
}

func TestKineticFitter_HighKMNeverReportsKcat(t *testing.T) {
	for _, km := range []float64{80, 150, 400} {
		k := assaytest.DefaultKinetic()
		k.KM = km
		kf, err := KineticFitter{}.Fit(assay.SubstrateLadder[:], k.Kobs(), 1e-7)
		if err != nil {
			t.Fatalf("KM=%g: %v", km, err)
		}
		if (kf.KM > assay.HighKMThreshold) != kf.HighKM {
			t.Fatalf("KM=%g fitted %g, HighKM=%v", km, kf.KM, kf.HighKM)
		}
	}
}

func TestKineticFitter_TruncationIsMinimal(t *testing.T) {
	kobs := assaytest.DefaultKinetic().Kobs()
	for _, keep := range []int{21, 18, 10, 2} {
		f := KineticFitter{Solve: failReciprocalAbove(keep)}
		kf, err := f.Fit(assay.SubstrateLadder[:], kobs, 1e-7)
		if err != nil {
			t.Fatalf("keep=%d: %v", keep, err)
		}
		rf := kf.Reciprocal
		if len(rf.InvS) != 21 {
			t.Fatalf("usable reciprocal points = %d, want 21", len(rf.InvS))
		}
		if rf.Removed != 21-keep || rf.Attempts != rf.Removed+1 || rf.Fallback {
			t.Fatalf("keep=%d: removed=%d attempts=%d fallback=%v", keep, rf.Removed, rf.Attempts, rf.Fallback)
		}
		invS, _ := rf.Used()
		if len(invS) != keep {
			t.Fatalf("used %d points, want %d", len(invS), keep)
		}
		// dropped points are the tail of the reciprocal series
		for i := range invS {
			if invS[i] != rf.InvS[i] {
				t.Fatalf("used points are not a prefix")
			}
		}
	}
}

func TestKineticFitter_ReciprocalFallback(t *testing.T) {
	kf, err := KineticFitter{Solve: failReciprocalAbove(0)}.Fit(assay.SubstrateLadder[:], assaytest.DefaultKinetic().Kobs(), 1e-7)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	rf := kf.Reciprocal
	if !rf.Fallback || rf.Removed != 0 || rf.Attempts != len(rf.InvS) {
		t.Fatalf("fallback = %+v", rf)
	}
	if rf.InvVmax != 0 || rf.KM != 0 {
		t.Fatalf("fallback parameters must be zero, got %g %g", rf.InvVmax, rf.KM)
	}
	if kf.Kcat == 0 {
		t.Fatalf("primary fit must survive reciprocal failure")
	}
}

func TestKineticFitter_PrimaryFailure(t *testing.T) {
	boom := errors.New("boom")
	solve := func(m fit.Model, x, y, p0 []float64, b fit.Bounds) (*fit.Result, error) { return nil, boom }
	_, err := KineticFitter{Solve: solve}.Fit(assay.SubstrateLadder[:], assaytest.DefaultKinetic().Kobs(), 1e-7)
	if !errors.Is(err, assay.ErrCurveFitFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected curve fit failure wrapping boom, got %v", err)
	}
	var fe *assay.FitError
	if !errors.As(err, &fe) || fe.Stage != MichaelisMenten.Name {
		t.Fatalf("expected FitError from the primary stage, got %v", err)
	}
}

func TestKineticFitter_ZeroKMIsInvalid(t *testing.T) {
	solve := func(m fit.Model, x, y, p0 []float64, b fit.Bounds) (*fit.Result, error) {
		return &fit.Result{Params: []float64{10, 0}, SD: []float64{1, 1}}, nil
	}
	_, err := KineticFitter{Solve: solve}.Fit(assay.SubstrateLadder[:], assaytest.DefaultKinetic().Kobs(), 1e-7)
	if !errors.Is(err, assay.ErrInvalidFit) {
		t.Fatalf("expected ErrInvalidFit, got %v", err)
	}
}

func TestAnalyze_BlankWellsAreDropped(t *testing.T) {
	k := assaytest.DefaultKinetic()
	k.Blank = []int{0, 5, 12}
	res, err := NewAnalyzer().Analyze(kineticInput(k))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Points != 21 {
		t.Fatalf("points = %d, want 21", res.Points)
	}
	if !near(*res.Kinetic.KM, 4, 1e-4) {
		t.Fatalf("KM = %g", *res.Kinetic.KM)
	}
}

func TestAnalyze_UnknownYieldUnit(t *testing.T) {
	k := assaytest.DefaultKinetic()
	k.YieldUnit = "(g/L)"
	_, err := NewAnalyzer().Analyze(Input{Name: "k.csv", Data: k.Grid().CSV()})
	if !errors.Is(err, assay.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestAnalyze_BlankProbeCellIsMissingField(t *testing.T) {
	cases := []struct {
		name     string
		row, col int
	}{
		{"yield", 2, 6},
		{"dilution", 2, 7},
	}
	for _, tc := range cases {
		g := assaytest.DefaultKinetic().Grid()
		g.Set(tc.row, tc.col, "")
		_, err := NewAnalyzer().Analyze(Input{
			Name: "k.csv",
			Data: g.CSV(),
			Want: []assay.LayoutKind{assay.KineticAssay},
		})
		if !errors.Is(err, assay.ErrMissingField) || assay.Kind(err) != "missing_or_malformed_field" {
			t.Fatalf("%s: expected ErrMissingField, got %v", tc.name, err)
		}
		var fe *assay.FieldError
		if !errors.As(err, &fe) || fe.Row != tc.row || fe.Col != tc.col || fe.Reason != "blank" {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestLineweaverChartUsesFittedPointsOnly(t *testing.T) {
	kf, err := KineticFitter{Solve: failReciprocalAbove(15)}.Fit(assay.SubstrateLadder[:], assaytest.DefaultKinetic().Kobs(), 1e-7)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	spec := lineweaverChart("WT", kf)
	data := spec.Series[len(spec.Series)-1]
	if len(data.X) != 15 {
		t.Fatalf("plotted %d points, want 15", len(data.X))
	}
	if spec.Title != "WT Lineweaver-Burk Plot" {
		t.Fatalf("title = %q", spec.Title)
	}
}
