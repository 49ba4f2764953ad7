package analysis

import (
	"math"

	"github.com/KaramelBytes/assayfit-cli/internal/fit"
)

// MichaelisMenten is kobs = kcat·S / (KM + S) with p = (kcat, KM).
var MichaelisMenten = fit.Model{
	Name: "michaelis-menten",
	F: func(s float64, p []float64) float64 {
		return p[0] * s / (p[1] + s)
	},
	Grad: func(s float64, p []float64, g []float64) {
		d := p[1] + s
		g[0] = s / d
		g[1] = -p[0] * s / (d * d)
	},
}

// HighKMLinear is kobs = (kcat/KM)·S, the unsaturated limit of MichaelisMenten.
var HighKMLinear = fit.Model{
	Name: "high-KM linear",
	F: func(s float64, p []float64) float64 {
		return p[0] * s
	},
	Grad: func(s float64, p []float64, g []float64) {
		g[0] = s
	},
}

// LineweaverBurk is 1/v = KM·(1/vmax)·(1/S) + 1/vmax with p = (1/vmax, KM).
var LineweaverBurk = fit.Model{
	Name: "lineweaver-burk",
	F: func(invS float64, p []float64) float64 {
		return p[1]*p[0]*invS + p[0]
	},
	Grad: func(invS float64, p []float64, g []float64) {
		g[0] = p[1]*invS + 1
		g[1] = p[0] * invS
	},
}

// Logistic is f = 1 / (1 + exp(-k·(T - T50))) with p = (k, T50).
var Logistic = fit.Model{
	Name: "logistic",
	F: func(t float64, p []float64) float64 {
		return 1 / (1 + math.Exp(-p[0]*(t-p[1])))
	},
	Grad: func(t float64, p []float64, g []float64) {
		f := 1 / (1 + math.Exp(-p[0]*(t-p[1])))
		w := f * (1 - f)
		g[0] = w * (t - p[1])
		g[1] = -w * p[0]
	},
}
