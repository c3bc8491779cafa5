package optimize

import (
	"math"
)

const (
	goldenMean = 0.3819660112501051 // (3-sqrt(5))/2
	sqrtEps    = 1.4901161193847656e-08
)

// Brent maximizes a single parameter with Brent's method (golden
// section search with parabolic interpolation) on a bounded interval.
type Brent struct {
	// Tolerance is the absolute tolerance of the parameter.
	Tolerance float64
	// MaxEvaluations limits the function calls.
	MaxEvaluations int
	// Window, if larger than 1, limits the search of a positive
	// parameter x to [x/Window, x*Window] intersected with the
	// bounds. The window is moved if the maximum is on its edge.
	Window float64
}

// NewBrent returns Brent with default settings.
func NewBrent() *Brent {
	return &Brent{
		Tolerance:      1e-5,
		MaxEvaluations: 100,
		Window:         0,
	}
}

// Maximize1 maximizes f over a single parameter. The parameter is
// never moved to a point worse than the starting one.
func (b *Brent) Maximize1(par FloatParameter, f func() float64) float64 {
	x0 := par.Get()
	f0 := f()
	lo, hi := par.GetMin(), par.GetMax()
	if b.Window <= 1 || x0 <= 0 {
		// unbounded parameters are searched around the current value
		if math.IsInf(lo, -1) {
			lo = x0 - math.Max(1, math.Abs(x0))
		}
		if math.IsInf(hi, 1) {
			hi = x0 + math.Max(1, math.Abs(x0))
		}
		x, fx := b.fminbound(par, f, lo, hi)
		return b.settle(par, x0, f0, x, fx)
	}
	x, fx := x0, f0
	for shift := 0; shift < 4; shift++ {
		wlo := math.Max(lo, x/b.Window)
		whi := math.Min(hi, x*b.Window)
		nx, nfx := b.fminbound(par, f, wlo, whi)
		if !(nfx > fx) {
			break
		}
		x, fx = nx, nfx
		edge := b.Tolerance * 10
		if (nx-wlo > edge || wlo == lo) && (whi-nx > edge || whi == hi) {
			break
		}
	}
	return b.settle(par, x0, f0, x, fx)
}

func (b *Brent) settle(par FloatParameter, x0, f0, x, fx float64) float64 {
	if fx < f0 || math.IsNaN(fx) {
		par.Set(x0)
		return f0
	}
	par.Set(x)
	return fx
}

// fminbound is the bounded Brent's method minimizing -f over [a, b].
func (b *Brent) fminbound(par FloatParameter, f func() float64, a, c float64) (float64, float64) {
	eval := func(x float64) float64 {
		par.Set(x)
		v := -f()
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}
	hi := c
	xatol := b.Tolerance
	fulc := a + goldenMean*(hi-a)
	nfc, xf := fulc, fulc
	rat, e := 0.0, 0.0
	x := xf
	fx := eval(x)
	num := 1
	ffulc, fnfc := fx, fx
	xm := 0.5 * (a + hi)
	tol1 := sqrtEps*math.Abs(xf) + xatol/3
	tol2 := 2 * tol1

	for math.Abs(xf-xm) > (tol2 - 0.5*(hi-a)) {
		golden := true
		if math.Abs(e) > tol1 {
			golden = false
			r := (xf - nfc) * (fx - ffulc)
			q := (xf - fulc) * (fx - fnfc)
			p := (xf-fulc)*q - (xf-nfc)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			r = e
			e = rat
			if math.Abs(p) < math.Abs(0.5*q*r) && p > q*(a-xf) && p < q*(hi-xf) {
				rat = p / q
				x = xf + rat
				if x-a < tol2 || hi-x < tol2 {
					rat = tol1 * sign(xm-xf)
				}
			} else {
				golden = true
			}
		}
		if golden {
			if xf >= xm {
				e = a - xf
			} else {
				e = hi - xf
			}
			rat = goldenMean * e
		}
		x = xf + sign(rat)*math.Max(math.Abs(rat), tol1)
		fu := eval(x)
		num++

		if fu <= fx {
			if x >= xf {
				a = xf
			} else {
				hi = xf
			}
			fulc, ffulc = nfc, fnfc
			nfc, fnfc = xf, fx
			xf, fx = x, fu
		} else {
			if x < xf {
				a = x
			} else {
				hi = x
			}
			if fu <= fnfc || nfc == xf {
				fulc, ffulc = nfc, fnfc
				nfc, fnfc = x, fu
			} else if fu <= ffulc || fulc == xf || fulc == nfc {
				fulc, ffulc = x, fu
			}
		}
		if b.MaxEvaluations > 0 && num >= b.MaxEvaluations {
			log.Debugf("%s: maximum number of evaluations reached", par.Name())
			break
		}
		xm = 0.5 * (a + hi)
		tol1 = sqrtEps*math.Abs(xf) + xatol/3
		tol2 = 2 * tol1
	}
	return xf, -fx
}

// sign returns -1 for negative values and 1 otherwise.
func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
