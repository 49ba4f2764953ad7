package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// covariance estimates the parameter covariance from the Jacobian at the
// solution: pinv(JᵀJ) scaled by the residual variance SSR/(m-n). The pseudo
// inverse comes from the SVD of J, discarding singular values below
// eps·max(m,n)·s_max. With no residual degrees of freedom the covariance is
// undefined and every entry is +Inf.
func covariance(jac *mat.Dense, cost float64, m, n int) [][]float64 {
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	if m <= n {
		fillInf(cov)
		return cov
	}
	var svd mat.SVD
	if ok := svd.Factorize(jac, mat.SVDThin); !ok {
		fillInf(cov)
		return cov
	}
	s := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	threshold := 2.220446049250313e-16 * float64(max(m, n))
	if len(s) > 0 {
		threshold *= s[0]
	}
	scale := 2 * cost / float64(m-n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k, sk := range s {
				if sk <= threshold {
					continue
				}
				sum += v.At(i, k) * v.At(j, k) / (sk * sk)
			}
			cov[i][j] = sum * scale
		}
	}
	for i := range cov {
		for j := range cov[i] {
			if math.IsNaN(cov[i][j]) {
				cov[i][j] = math.Inf(1)
			}
		}
	}
	return cov
}

func fillInf(cov [][]float64) {
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] = math.Inf(1)
		}
	}
}
