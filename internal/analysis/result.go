package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/chart"
)

// Chart keys used in responses and output files.
const (
	ChartMenten     = "menten_plot"
	ChartLineweaver = "lineweaver_plot"
	ChartThermo     = "image"
	wildTypeCode    = "X0X"
	wildTypeDisplay = "WT"
	thermoLabel     = "Thermostability Assay Data"
)

// Result is the assembled outcome of one upload. Nullable numbers are nil
// when not applicable (high-KM branch) or not finite (undefined covariance).
type Result struct {
	RunID     string             `json:"run_id"`
	Label     string             `json:"label"`
	Source    string             `json:"source,omitempty"`
	Layout    string             `json:"layout"`
	CreatedAt time.Time          `json:"created_at"`
	Points    int                `json:"points"`
	Kinetic   *KineticParameters `json:"kinetic,omitempty"`
	Thermo    *ThermoParameters  `json:"thermo,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
	Charts    []NamedChart       `json:"charts,omitempty"`
}

// NamedChart pairs a chart description with its response key.
type NamedChart struct {
	Key  string     `json:"key"`
	Spec chart.Spec `json:"spec"`
}

// KineticParameters are the reported kinetic constants. Kcat, KM, Vmax and
// their SDs are nil together in the high-KM regime.
type KineticParameters struct {
	Kcat          *float64             `json:"kcat"`
	KcatSD        *float64             `json:"kcat_SD"`
	KM            *float64             `json:"KM"`
	KMSD          *float64             `json:"KM_SD"`
	Vmax          *float64             `json:"vmax"`
	VmaxSD        *float64             `json:"vmax_SD"`
	KcatOverKM    *float64             `json:"kcat_over_KM"`
	KcatOverKMSD  *float64             `json:"kcat_over_KM_SD"`
	HighKM        bool                 `json:"high_KM"`
	EnzymeMolar   float64              `json:"enzyme_molar"`
	EnzymeMgPerML float64              `json:"enzyme_mg_per_mL"`
	Reciprocal    ReciprocalParameters `json:"reciprocal"`
}

// ReciprocalParameters summarize the Lineweaver-Burk diagnostic fit.
type ReciprocalParameters struct {
	InvVmax       *float64 `json:"inv_vmax"`
	Vmax          *float64 `json:"vmax"`
	KM            *float64 `json:"KM"`
	Points        int      `json:"points"`
	RemovedPoints int      `json:"removed_points"`
	Fallback      bool     `json:"fallback"`
}

// ThermoParameters are the logistic midpoint and slope.
type ThermoParameters struct {
	T50        *float64 `json:"T50"`
	T50SD      *float64 `json:"T50_SD"`
	K          *float64 `json:"k"`
	KSD        *float64 `json:"k_SD"`
	Normalizer float64  `json:"normalizer"`
}

// DisplayLabel maps the wild-type placeholder code to its display name.
func DisplayLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == wildTypeCode {
		return wildTypeDisplay
	}
	return label
}

// DefaultLabel is the display label used when an upload names no variant.
func DefaultLabel(kind assay.LayoutKind) string {
	if kind.IsThermo() {
		return thermoLabel
	}
	return wildTypeDisplay
}

// Chart returns the chart stored under key.
func (r *Result) Chart(key string) (chart.Spec, bool) {
	for _, c := range r.Charts {
		if c.Key == key {
			return c.Spec, true
		}
	}
	return chart.Spec{}, false
}

// Fields returns the flat key set of the upload endpoints, without images.
func (r *Result) Fields() map[string]any {
	out := map[string]any{
		"run_id": r.RunID,
		"layout": r.Layout,
	}
	switch {
	case r.Kinetic != nil:
		k := r.Kinetic
		out["kcat"] = k.Kcat
		out["kcat_SD"] = k.KcatSD
		out["KM"] = k.KM
		out["KM_SD"] = k.KMSD
		out["kcat_over_KM"] = k.KcatOverKM
		out["kcat_over_KM_SD"] = k.KcatOverKMSD
		out["vmax"] = k.Vmax
		out["vmax_SD"] = k.VmaxSD
		out["high_KM"] = k.HighKM
		out["removed_points"] = k.Reciprocal.RemovedPoints
		out["reciprocal_fallback"] = k.Reciprocal.Fallback
	case r.Thermo != nil:
		th := r.Thermo
		out["T50"] = th.T50
		out["T50_SD"] = th.T50SD
		out["k"] = th.K
		out["k_SD"] = th.KSD
	}
	return out
}

func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newResult(label string, kind assay.LayoutKind, now time.Time) *Result {
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel(kind)
	}
	return &Result{
		RunID:     uuid.NewString(),
		Label:     DisplayLabel(label),
		Layout:    kind.String(),
		CreatedAt: now.UTC(),
	}
}

func assembleKinetic(res *Result, kf *KineticFit, uc assay.UnitContext) {
	kp := &KineticParameters{
		KcatOverKM:    num(kf.KcatOverKM),
		KcatOverKMSD:  num(kf.KcatOverKMSD),
		HighKM:        kf.HighKM,
		EnzymeMolar:   kf.EnzymeMolar,
		EnzymeMgPerML: assay.EnzymeMgPerML(uc),
	}
	if !kf.HighKM {
		kp.Kcat, kp.KcatSD = num(kf.Kcat), num(kf.KcatSD)
		kp.KM, kp.KMSD = num(kf.KM), num(kf.KMSD)
		kp.Vmax, kp.VmaxSD = num(kf.Vmax), num(kf.VmaxSD)
	}
	rf := kf.Reciprocal
	kp.Reciprocal = ReciprocalParameters{
		InvVmax:       num(rf.InvVmax),
		Vmax:          num(1 / rf.InvVmax),
		KM:            num(rf.KM),
		Points:        len(rf.InvS) - rf.Removed,
		RemovedPoints: rf.Removed,
		Fallback:      rf.Fallback,
	}
	if rf.Fallback {
		kp.Reciprocal.Points = 0
	}
	res.Kinetic = kp
	res.Points = len(kf.S)
	res.Charts = kineticCharts(res.Label, kf)
}

func assembleThermo(res *Result, tf *ThermoFit) {
	res.Thermo = &ThermoParameters{
		T50:        num(tf.T50),
		T50SD:      num(tf.T50SD),
		K:          num(tf.K),
		KSD:        num(tf.KSD),
		Normalizer: tf.Normalizer,
	}
	res.Points = len(tf.T)
	res.Charts = []NamedChart{{Key: ChartThermo, Spec: thermoChart(res.Label, tf)}}
}
