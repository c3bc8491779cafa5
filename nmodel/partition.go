package nmodel

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/phylem/emtree/dist"
	"github.com/phylem/emtree/tree"
)

const (
	// minPi is the smallest frequency used in the rate matrix.
	minPi = 1e-6
	// partial likelihoods are rescaled when they drop below this.
	scaleThreshold = 1e-50
)

// partition is a locus with its own substitution parameters.
type partition struct {
	loc *locus

	alpha float64
	// freqs are unnormalized frequency weights.
	freqs [nStates]float64
	rates [NRates]float64

	optAlpha bool
	optFreqs bool
	optRates bool

	nCat    int
	em      EMatrix
	emValid bool
	cats    []float64
	catTmp  []float64
	catsOK  bool

	// partial likelihoods by node id, [pattern][category][state]
	plh   [][]float64
	scale []float64
	// transition matrices, [node][category][16]
	pm []float64

	lnL   float64
	valid bool
}

func newPartition(loc *locus, nCat int) *partition {
	p := &partition{
		loc:      loc,
		alpha:    1,
		optAlpha: true,
		optFreqs: true,
		optRates: true,
		nCat:     nCat,
		cats:     make([]float64, nCat),
		catTmp:   make([]float64, nCat),
		scale:    make([]float64, len(loc.patterns)),
	}
	copy(p.freqs[:], loc.freqs)
	for i := range p.rates {
		p.rates[i] = 1
	}
	return p
}

// pi returns normalized equilibrium frequencies.
func (p *partition) pi() []float64 {
	pi := make([]float64, nStates)
	copy(pi, p.freqs[:])
	normalizeFloor(pi, minPi)
	return pi
}

// matrixChanged should be called when frequencies or rates change.
func (p *partition) matrixChanged() {
	p.emValid = false
	p.valid = false
}

// alphaChanged should be called when alpha changes.
func (p *partition) alphaChanged() {
	p.catsOK = false
	p.valid = false
}

func (p *partition) updateCategories() {
	if p.catsOK {
		return
	}
	if p.nCat == 1 {
		p.cats[0] = 1
	} else {
		dist.DiscreteGamma(p.alpha, p.alpha, p.nCat, false, p.catTmp, p.cats)
	}
	p.catsOK = true
}

// likelihood computes the log-likelihood with the pruning algorithm.
// leafTaxon maps node ids of the leaves to the taxa.
func (p *partition) likelihood(t *tree.Tree, leafTaxon []int) float64 {
	if p.valid {
		return p.lnL
	}
	pi := p.pi()
	if !p.emValid {
		if err := p.em.Set(p.rates[:], pi); err != nil {
			log.Warningf("%s: %v", p.loc.name, err)
			p.lnL = math.Inf(-1)
			p.valid = true
			return p.lnL
		}
		p.emValid = true
	}
	p.updateCategories()

	K := p.nCat
	nNodes := t.NNodes()
	nPat := len(p.loc.patterns)
	size := nPat * K * nStates
	if len(p.plh) != nNodes {
		p.plh = make([][]float64, nNodes)
		p.pm = make([]float64, nNodes*K*nStates*nStates)
	}

	for _, node := range t.Nodes() {
		if node.IsRoot() {
			continue
		}
		for c := 0; c < K; c++ {
			off := (node.Id*K + c) * nStates * nStates
			p.em.Exp(p.pm[off:off+nStates*nStates], node.BranchLength*p.cats[c])
		}
	}

	for k := range p.scale {
		p.scale[k] = 0
	}

	for _, node := range t.NodeOrder() {
		if p.plh[node.Id] == nil {
			p.plh[node.Id] = make([]float64, size)
		}
		out := p.plh[node.Id]
		for i := range out {
			out[i] = 1
		}
		for _, child := range node.ChildNodes() {
			for c := 0; c < K; c++ {
				off := (child.Id*K + c) * nStates * nStates
				pm := p.pm[off : off+nStates*nStates]
				for k := 0; k < nPat; k++ {
					o := out[(k*K+c)*nStates : (k*K+c+1)*nStates]
					if child.IsTerminal() {
						mask := p.loc.patterns[k][leafTaxon[child.Id]]
						for i := 0; i < nStates; i++ {
							s := 0.0
							for j := 0; j < nStates; j++ {
								if mask&(1<<uint(j)) != 0 {
									s += pm[i*nStates+j]
								}
							}
							o[i] *= s
						}
						continue
					}
					in := p.plh[child.Id][(k*K+c)*nStates : (k*K+c+1)*nStates]
					for i := 0; i < nStates; i++ {
						o[i] *= floats.Dot(pm[i*nStates:(i+1)*nStates], in)
					}
				}
			}
		}
		for k := 0; k < nPat; k++ {
			seg := out[k*K*nStates : (k+1)*K*nStates]
			if m := floats.Max(seg); m > 0 && m < scaleThreshold {
				floats.Scale(1/m, seg)
				p.scale[k] += math.Log(m)
			}
		}
	}

	root := p.plh[t.Node.Id]
	lnL := 0.0
	for k := 0; k < nPat; k++ {
		site := 0.0
		for c := 0; c < K; c++ {
			site += floats.Dot(pi, root[(k*K+c)*nStates:(k*K+c+1)*nStates])
		}
		lnL += p.loc.weights[k] * (math.Log(site/float64(K)) + p.scale[k])
	}
	if math.IsNaN(lnL) {
		lnL = math.Inf(-1)
	}
	p.lnL = lnL
	p.valid = true
	return lnL
}
