package nmodel

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/phylem/emtree/bio"
)

const (
	nStates = bio.NStates
	// NRates is the number of GTR exchangeabilities
	// (AC, AG, AT, CG, CT, GT).
	NRates = nStates * (nStates - 1) / 2
	// smallScale is the time below which P is the identity.
	smallScale = 1e-12
)

// EMatrix stores the GTR rate matrix as a symmetric eigen
// decomposition to quickly compute P=e^Qt. Q is scaled to one
// expected substitution per unit of time.
type EMatrix struct {
	pi     [nStates]float64
	sqrtPi [nStates]float64
	vals   []float64
	u      mat.Dense
}

// Set builds the rate matrix from the exchangeabilities and the
// equilibrium frequencies and performs the eigendecomposition.
func (e *EMatrix) Set(rates, freqs []float64) error {
	if len(rates) != NRates || len(freqs) != nStates {
		return errors.New("wrong number of rates or frequencies")
	}
	var q [nStates][nStates]float64
	for i := 0; i < nStates; i++ {
		e.pi[i] = freqs[i]
		e.sqrtPi[i] = math.Sqrt(freqs[i])
	}
	k := 0
	for i := 0; i < nStates; i++ {
		for j := i + 1; j < nStates; j++ {
			q[i][j] = rates[k] * e.pi[j]
			q[j][i] = rates[k] * e.pi[i]
			k++
		}
	}
	scale := 0.0
	for i := 0; i < nStates; i++ {
		sum := 0.0
		for j := 0; j < nStates; j++ {
			if j != i {
				sum += q[i][j]
			}
		}
		q[i][i] = -sum
		scale += e.pi[i] * sum
	}
	if scale <= 0 || math.IsNaN(scale) {
		return errors.New("zero rate matrix")
	}

	// S = Pi^1/2 Q Pi^-1/2 is symmetric
	s := mat.NewSymDense(nStates, nil)
	for i := 0; i < nStates; i++ {
		for j := i; j < nStates; j++ {
			s.SetSym(i, j, q[i][j]*e.sqrtPi[i]/e.sqrtPi[j]/scale)
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(s, true); !ok {
		return errors.New("eigendecomposition failed")
	}
	e.vals = es.Values(e.vals)
	e.u.Reset()
	es.VectorsTo(&e.u)
	return nil
}

// Exp computes P=e^Qt and writes it to p row by row.
func (e *EMatrix) Exp(p []float64, t float64) {
	if t < smallScale {
		for i := 0; i < nStates; i++ {
			for j := 0; j < nStates; j++ {
				if i == j {
					p[i*nStates+j] = 1
				} else {
					p[i*nStates+j] = 0
				}
			}
		}
		return
	}
	var d [nStates]float64
	for k := range d {
		d[k] = math.Exp(e.vals[k] * t)
	}
	for i := 0; i < nStates; i++ {
		for j := 0; j < nStates; j++ {
			v := 0.0
			for k := 0; k < nStates; k++ {
				v += e.u.At(i, k) * d[k] * e.u.At(j, k)
			}
			// make sure there are no negative elements
			p[i*nStates+j] = math.Abs(v * e.sqrtPi[j] / e.sqrtPi[i])
		}
	}
}
