// Package dist implements discrete approximations of continuous
// distributions used for among-site rate variation.
package dist

import (
	"gonum.org/v1/gonum/mathext"
)

// QuantileGamma returns the quantile of the gamma distribution with
// shape alpha and rate beta.
func QuantileGamma(prob, alpha, beta float64) float64 {
	return mathext.GammaIncRegInv(alpha, prob) / beta
}

// IncompleteGamma returns the regularized lower incomplete gamma
// function P(alpha, x).
func IncompleteGamma(x, alpha float64) float64 {
	return mathext.GammaIncReg(alpha, x)
}

// DiscreteGamma returns K categories of G(alpha, beta) with equal
// proportions. Every category is represented by its mean, or if
// UseMedian is set, by its median rescaled to keep the mean alpha/beta.
// tmp and res can be nil, otherwise they should have length K.
func DiscreteGamma(alpha, beta float64, K int, UseMedian bool, tmp, res []float64) []float64 {
	mean := alpha / beta

	if res == nil {
		res = make([]float64, K)
	}
	if K == 1 {
		res[0] = mean
		return res
	}
	if tmp == nil {
		tmp = make([]float64, K)
	}

	if UseMedian {
		t := 0.0
		for i := 0; i < K; i++ {
			res[i] = QuantileGamma((float64(i)*2+1)/(2*float64(K)), alpha, beta)
			t += res[i]
		}
		for i := 0; i < K; i++ {
			res[i] *= mean * float64(K) / t
		}
		return res
	}

	// cutting points
	for i := 0; i < K-1; i++ {
		tmp[i] = QuantileGamma((float64(i)+1)/float64(K), alpha, beta)
	}
	// mass of x*f(x) below the cutting points
	for i := 0; i < K-1; i++ {
		tmp[i] = IncompleteGamma(tmp[i]*beta, alpha+1)
	}
	res[0] = tmp[0] * mean * float64(K)
	for i := 1; i < K-1; i++ {
		res[i] = (tmp[i] - tmp[i-1]) * mean * float64(K)
	}
	res[K-1] = (1 - tmp[K-2]) * mean * float64(K)

	return res
}
