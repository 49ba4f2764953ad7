package analysis

import (
	"fmt"

	"github.com/KaramelBytes/assayfit-cli/internal/chart"
)

func kineticCharts(label string, kf *KineticFit) []NamedChart {
	return []NamedChart{
		{Key: ChartMenten, Spec: mentenChart(label, kf)},
		{Key: ChartLineweaver, Spec: lineweaverChart(label, kf)},
	}
}

// mentenChart plots kobs against [S] with the saturation fit, or the linear
// fit in the high-KM regime.
func mentenChart(label string, kf *KineticFit) chart.Spec {
	xs := chart.Linspace(0, maxOf(kf.S)*1.1, 100)
	data := chart.Series{Name: "data", X: kf.S, Y: kf.Kobs, Style: chart.Points, Color: "blue"}
	spec := chart.Spec{
		Title:  label,
		XLabel: "[S] (mM)",
		YLabel: "kobs (1/min)",
	}
	if kf.HighKM {
		spec.Title = label + " (Linear Fit)"
		spec.Series = []chart.Series{
			{
				Name:  fmt.Sprintf("kcat/KM = %.2f ± %.2f 1/(mM·min)", kf.KcatOverKM, kf.KcatOverKMSD),
				X:     xs,
				Y:     evalModel(HighKMLinear.F, xs, kf.KcatOverKM),
				Style: chart.Line,
			},
			data,
		}
		return spec
	}
	flat := make([]float64, len(xs))
	for i := range flat {
		flat[i] = kf.Kcat
	}
	spec.Series = []chart.Series{
		{Name: "fit", X: xs, Y: evalModel(MichaelisMenten.F, xs, kf.Kcat, kf.KM), Style: chart.Line},
		{
			Name:  fmt.Sprintf("kcat = %.1f ± %.1f 1/min (vmax = %.4f mM/min)", kf.Kcat, kf.KcatSD, kf.Vmax),
			X:     xs,
			Y:     flat,
			Style: chart.Dotted,
		},
		{
			Name:  fmt.Sprintf("KM = %.2f ± %.2f mM", kf.KM, kf.KMSD),
			X:     []float64{kf.KM, kf.KM, 0},
			Y:     []float64{0, kf.Kcat / 2, kf.Kcat / 2},
			Style: chart.Dashed,
		},
		data,
	}
	return spec
}

// lineweaverChart plots 1/v against 1/[S] for the points the reciprocal fit
// used, with the reciprocal fit line and, outside the high-KM regime, the
// line implied by the primary fit.
func lineweaverChart(label string, kf *KineticFit) chart.Spec {
	rf := kf.Reciprocal
	invS, invV := rf.Used()
	maxInv := 1.0
	if len(invS) > 0 {
		maxInv = maxOf(invS)
	}
	xs := chart.Linspace(-maxInv/7, maxInv, 100)
	spec := chart.Spec{
		Title:  label + " Lineweaver-Burk Plot",
		XLabel: "1/[S] (1/mM)",
		YLabel: "1/v (min/mM)",
	}
	if !kf.HighKM {
		spec.Series = append(spec.Series, chart.Series{
			Name:  reciprocalLabel(kf.KM, kf.Vmax),
			X:     xs,
			Y:     evalModel(LineweaverBurk.F, xs, 1/kf.Vmax, kf.KM),
			Style: chart.Dashed,
		})
	}
	spec.Series = append(spec.Series,
		chart.Series{
			Name:  reciprocalLabel(rf.KM, 1/rf.InvVmax),
			X:     xs,
			Y:     evalModel(LineweaverBurk.F, xs, rf.InvVmax, rf.KM),
			Style: chart.Line,
		},
		chart.Series{Name: "data", X: invS, Y: invV, Style: chart.Points, Color: "blue"},
	)
	return spec
}

func reciprocalLabel(km, vmax float64) string {
	return fmt.Sprintf("1/v = (%.2f mM / %.4f mM/min)·1/[S] + 1/%.4f mM/min", km, vmax, vmax)
}

// thermoChart plots normalized activity with the logistic fit, the T50
// marker and the tangent at the midpoint.
func thermoChart(label string, tf *ThermoFit) chart.Spec {
	xs := chart.Linspace(30, 50, 100)
	tangent := chart.Linspace(30, 50, 50)
	a := tf.K / 4
	ty := make([]float64, len(tangent))
	for i, x := range tangent {
		ty[i] = a*x + (0.5 - a*tf.T50)
	}
	lo, hi := 30.0, 50.0
	for _, t := range tf.T {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	return chart.Spec{
		Title:  label,
		XLabel: "T (°C)",
		YLabel: "Normalized product formation rate",
		XRange: &chart.Range{Min: lo - 1, Max: hi + 1},
		YRange: &chart.Range{Min: -0.05, Max: 1.25},
		Series: []chart.Series{
			{Name: "data", X: tf.T, Y: tf.Normalized, Style: chart.Points, Color: "blue"},
			{Name: "fit", X: xs, Y: evalModel(Logistic.F, xs, tf.K, tf.T50), Style: chart.Line, Color: "red"},
			{
				Name:  fmt.Sprintf("T50 = %.2f ± %.2f °C", tf.T50, tf.T50SD),
				X:     []float64{tf.T50, tf.T50},
				Y:     []float64{-0.05, 1.05},
				Style: chart.Dashed,
			},
			{Name: fmt.Sprintf("k = %.2f", tf.K), X: tangent, Y: ty, Style: chart.Dotted},
		},
	}
}

func evalModel(f func(float64, []float64) float64, xs []float64, p ...float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f(x, p)
	}
	return out
}
