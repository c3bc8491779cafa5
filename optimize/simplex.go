package optimize

import (
	"math"
)

const (
	TINY  = 1e-10
	SMALL = 1e-6
)

// Simplex is the downhill simplex (Nelder-Mead) method. The simplex
// is restarted once after convergence.
type Simplex struct {
	// Delta is the initial simplex size.
	Delta float64
	// FTolerance is the relative tolerance of the function.
	FTolerance float64
	// Iterations limits the number of iterations.
	Iterations int
}

// NewSimplex returns the downhill simplex with default settings.
func NewSimplex() *Simplex {
	return &Simplex{
		Delta:      0.1,
		FTolerance: 1e-7,
		Iterations: 1000,
	}
}

// simplex is a single run of the method.
type simplex struct {
	pars   FloatParameters
	f      func() float64
	points [][]float64
	l      []float64
	psum   []float64
	trial  []float64
}

// evaluate returns f at x, -Inf outside the bounds.
func (ds *simplex) evaluate(x []float64) float64 {
	if !ds.pars.ValuesInRange(x) {
		return math.Inf(-1)
	}
	ds.pars.SetValues(x)
	return ds.f()
}

func (ds *simplex) create(x0 []float64, delta float64) {
	n := len(x0)
	ds.points = make([][]float64, n+1)
	ds.l = make([]float64, n+1)
	for i := range ds.points {
		ds.points[i] = append([]float64(nil), x0...)
		if i > 0 {
			// relative step for non-zero values
			step := delta
			if x0[i-1] != 0 {
				step = delta * math.Abs(x0[i-1])
			}
			ds.points[i][i-1] += step
		}
		ds.l[i] = ds.evaluate(ds.points[i])
	}
}

func (ds *simplex) calcPsum() {
	ds.psum = make([]float64, len(ds.pars))
	for i := range ds.psum {
		for _, point := range ds.points {
			ds.psum[i] += point[i]
		}
	}
}

// amotry extrapolates by factor fac throught the face of the simplex accros from
// the low point, tries it, and replaces the low point if the new point is better.
func (ds *simplex) amotry(ilo int, fac float64) float64 {
	ds.calcPsum()
	ndim := len(ds.pars)
	if ds.trial == nil {
		ds.trial = make([]float64, ndim)
	}
	fac1 := (1 - fac) / float64(ndim)
	fac2 := fac1 - fac
	for j := 0; j < ndim; j++ {
		ds.trial[j] = ds.psum[j]*fac1 - ds.points[ilo][j]*fac2
	}
	l := ds.evaluate(ds.trial)
	if l > ds.l[ilo] {
		ds.points[ilo], ds.trial = ds.trial, ds.points[ilo]
		ds.l[ilo] = l
	}
	return l
}

func (s *Simplex) Maximize(pars FloatParameters, f func() float64) float64 {
	if len(pars) == 0 {
		return f()
	}
	ds := &simplex{pars: pars, f: f}
	ds.create(pars.Values(nil), s.Delta)

	// Lowest (worst), next-lowest and highest points
	var ilo, inlo, ihi int
	var llo, lnlo, lhi float64
	repeat := false
	oldL := math.Inf(-1)
	i := 0
Iter:
	for i = 1; i <= s.Iterations; i++ {
		if ds.l[0] < ds.l[1] {
			ilo, inlo, ihi = 0, 1, 1
		} else {
			ilo, inlo, ihi = 1, 0, 0
		}
		llo = ds.l[ilo]
		lnlo = ds.l[inlo]
		lhi = ds.l[ihi]
		for i := 2; i < len(ds.points); i++ {
			if ds.l[i] >= lhi {
				lhi = ds.l[i]
				ihi = i
			}
			if ds.l[i] < llo {
				lnlo = llo
				inlo = ilo
				llo = ds.l[i]
				ilo = i
			} else if ds.l[i] < lnlo {
				lnlo = ds.l[i]
				inlo = i
			}
		}
		_ = inlo
		rtol := 2 * math.Abs(lhi-llo) / (math.Abs(llo) + math.Abs(lhi) + TINY)
		if rtol < s.FTolerance {
			if repeat && math.Abs(oldL-lhi) < SMALL {
				break Iter
			}
			repeat = true
			oldL = lhi
			log.Debugf("simplex converged at %f, restarting", lhi)
			ds.create(append([]float64(nil), ds.points[ihi]...), s.Delta)
			continue
		}
		l := ds.amotry(ilo, -1)
		switch {
		case l >= lhi:
			ds.amotry(ilo, 2)
		case l <= lnlo:
			lsave := ds.l[ilo]
			l := ds.amotry(ilo, 0.5)
			if l <= lsave {
				// shrink towards the best point
				for j, point := range ds.points {
					if j != ihi {
						for k := range point {
							point[k] = 0.5 * (point[k] + ds.points[ihi][k])
						}
						ds.l[j] = ds.evaluate(point)
					}
				}
			}
		}
	}
	if i > s.Iterations {
		log.Debugf("simplex: iterations exceeded (%d)", s.Iterations)
	}

	best := 0
	for j := range ds.l {
		if ds.l[j] > ds.l[best] {
			best = j
		}
	}
	pars.SetValues(ds.points[best])
	return f()
}
