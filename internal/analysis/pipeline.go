// Package analysis turns a parsed plate export into fitted parameters: layout
// detection, extraction, unit conversion, the kinetic or thermostability fit
// and the assembled result with its chart descriptions.
package analysis

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/diagnostics"
	"github.com/KaramelBytes/assayfit-cli/internal/fit"
	"github.com/KaramelBytes/assayfit-cli/internal/table"
)

var discard = diagnostics.Nop()

// Recorder receives one observation per analyzed upload.
type Recorder interface {
	ObserveFit(layout string, err error, elapsed time.Duration)
	ObserveKinetic(highKM bool, removed int, fallback bool)
}

// Input is one uploaded file.
type Input struct {
	Name  string
	Data  []byte
	Label string
	// Want restricts the accepted layouts; empty accepts any.
	Want []assay.LayoutKind
}

// Analyzer runs the pipeline. It holds only configuration and collaborators
// and may be shared between goroutines.
type Analyzer struct {
	Diagnostics *slog.Logger
	Solver      fit.Solver
	Table       table.Options
	Recorder    Recorder
	Now         func() time.Time
}

// NewAnalyzer returns an Analyzer with the default solver, default table
// options and a discarding diagnostics logger.
func NewAnalyzer() *Analyzer {
	return &Analyzer{Table: table.DefaultOptions()}
}

func (a *Analyzer) log() *slog.Logger {
	if a.Diagnostics != nil {
		return a.Diagnostics
	}
	return discard
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Analyze parses the upload and runs AnalyzeTable on it. A file that cannot
// be read as a table is reported as an unrecognized layout.
func (a *Analyzer) Analyze(in Input) (*Result, error) {
	opt := a.Table
	if opt.Encoding == "" {
		opt.Encoding = "auto"
	}
	t, err := table.Read(in.Name, in.Data, opt)
	if err != nil {
		a.log().Debug("table read failed", "file", in.Name, "error", err)
		if a.Recorder != nil {
			a.Recorder.ObserveFit(assay.LayoutUnknown.String(), err, 0)
		}
		return nil, fmt.Errorf("%w: %w", assay.ErrUnrecognizedLayout, err)
	}
	res, err := a.AnalyzeTable(t, in.Label, in.Want...)
	if res != nil {
		res.Source = in.Name
	}
	return res, err
}

// AnalyzeTable detects the layout of t, extracts its series and fits it.
// When want is non-empty the detected layout must be one of its kinds.
func (a *Analyzer) AnalyzeTable(t *table.RawTable, label string, want ...assay.LayoutKind) (*Result, error) {
	start := a.now()
	lg := a.log()
	kind, err := assay.Detect(t)
	if err == nil {
		err = checkLayout(kind, want)
	}
	var res *Result
	if err == nil {
		lg.Debug("analysis started", "source", t.Name, "layout", kind.String(), "label", label)
		res, err = a.run(t, kind, label, lg)
	}
	if a.Recorder != nil {
		a.Recorder.ObserveFit(kind.String(), err, a.now().Sub(start))
		if err == nil && res.Kinetic != nil {
			a.Recorder.ObserveKinetic(res.Kinetic.HighKM, res.Kinetic.Reciprocal.RemovedPoints, res.Kinetic.Reciprocal.Fallback)
		}
	}
	if err != nil {
		lg.Debug("analysis failed", "source", t.Name, "kind", assay.Kind(err), "error", err)
		return nil, err
	}
	lg.Debug("analysis finished", "run_id", res.RunID, "points", res.Points)
	return res, nil
}

func (a *Analyzer) run(t *table.RawTable, kind assay.LayoutKind, label string, lg *slog.Logger) (*Result, error) {
	series, err := assay.Extract(t, kind)
	if err != nil {
		return nil, err
	}
	for _, w := range series.Warnings {
		lg.Debug("extraction warning", "warning", w)
	}
	lg.Debug("series extracted", "kept", series.Len(), "candidates", len(series.Mask))

	res := newResult(label, kind, a.now())
	res.Warnings = series.Warnings
	if kind.IsThermo() {
		tf, err := ThermoFitter{Solve: a.Solver, Log: lg}.Fit(series.X, series.Y)
		if err != nil {
			return nil, err
		}
		assembleThermo(res, tf)
		return res, nil
	}

	uc, err := assay.ReadUnitContext(t)
	if err != nil {
		return nil, err
	}
	lg.Debug("unit context", "slope_unit", uc.SlopeUnit, "yield_unit", uc.YieldUnit, "yield", uc.Yield, "dilution", uc.Dilution)
	rates, err := assay.ObservedRates(series.Y, uc)
	if err != nil {
		return nil, err
	}
	kf, err := KineticFitter{Solve: a.Solver, Log: lg}.Fit(series.X, rates.Kobs, rates.EnzymeMolar)
	if err != nil {
		return nil, err
	}
	assembleKinetic(res, kf, uc)
	return res, nil
}

func checkLayout(kind assay.LayoutKind, want []assay.LayoutKind) error {
	if len(want) == 0 {
		return nil
	}
	names := make([]string, len(want))
	for i, w := range want {
		if w == kind {
			return nil
		}
		names[i] = w.String()
	}
	return fmt.Errorf("%w: got %s layout, expected %s", assay.ErrUnrecognizedLayout, kind, strings.Join(names, " or "))
}
