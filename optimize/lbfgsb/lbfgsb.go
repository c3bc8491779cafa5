// Package lbfgsb provides the bounded limited-memory BFGS maximizer.
// It needs cgo and a Fortran compiler, so it lives apart from the
// optimize package.
package lbfgsb

import (
	"math"

	golbfgsb "github.com/idavydov/go-lbfgsb"
	"github.com/op/go-logging"

	"github.com/phylem/emtree/optimize"
)

var log = logging.MustGetLogger("optimize")

// LBFGSB maximizes using L-BFGS-B with numerical gradients.
type LBFGSB struct {
	// DH is the finite difference step.
	DH         float64
	FTolerance float64
	GTolerance float64
}

// New returns L-BFGS-B with default settings.
func New() *LBFGSB {
	return &LBFGSB{
		DH:         1e-6,
		FTolerance: 1e-9,
		GTolerance: 1e-9,
	}
}

// objective is the negated function as required by the minimizer.
type objective struct {
	parameters optimize.FloatParameters
	f          func() float64
	dH         float64
	grad       []float64
	calls      int
	maxL       float64
	maxLPar    []float64
}

func (o *objective) EvaluateFunction(x []float64) float64 {
	if !o.parameters.ValuesInRange(x) {
		return math.Inf(+1)
	}

	o.parameters.SetValues(x)

	L := o.f()
	o.calls++
	if L > o.maxL {
		o.maxL = L
		o.maxLPar = o.parameters.Values(o.maxLPar)
	}
	return -L
}

func (o *objective) EvaluateGradient(x []float64) (grad []float64) {
	if o.grad == nil {
		o.grad = make([]float64, len(x))
	}
	grad = o.grad
	o.parameters.SetValues(x)
	for i, par := range o.parameters {
		v := x[i]
		lo := math.Max(v-o.dH, par.GetMin())
		hi := math.Min(v+o.dH, par.GetMax())
		par.Set(lo)
		l1 := -o.f()
		par.Set(hi)
		l2 := -o.f()
		o.calls += 2
		par.Set(v)
		grad[i] = (l2 - l1) / (hi - lo)
	}
	return
}

func (l *LBFGSB) Maximize(pars optimize.FloatParameters, f func() float64) float64 {
	if len(pars) == 0 {
		return f()
	}
	obj := &objective{
		parameters: pars,
		f:          f,
		dH:         l.DH,
		maxL:       math.Inf(-1),
	}
	bounds := make([][2]float64, len(pars))
	for i, par := range pars {
		bounds[i][0] = par.GetMin() + 1e-5
		bounds[i][1] = par.GetMax() - 1e-5
	}

	opt := new(golbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(l.FTolerance)
	opt.SetGTolerance(l.GTolerance)
	opt.SetBounds(bounds)

	x0 := pars.Values(nil)
	obj.EvaluateFunction(x0)
	_, exitStatus := opt.Minimize(obj, x0)
	log.Debugf("L-BFGS-B exit status: %v, %d function calls", exitStatus, obj.calls)

	pars.SetValues(obj.maxLPar)
	return f()
}
