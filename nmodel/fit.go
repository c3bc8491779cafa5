package nmodel

import (
	"fmt"

	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/optimize"
	"github.com/phylem/emtree/tree"
)

// maxFitRounds limits the rounds of Fit.
const maxFitRounds = 50

func (m *Model) maximize(pars optimize.FloatParameters) float64 {
	if len(pars) == 0 {
		return m.Likelihood()
	}
	return m.maximizer.Maximize(pars, m.Likelihood)
}

func (m *Model) branchParameters(nodes []*tree.Node) (pars optimize.FloatParameters) {
	for _, node := range nodes {
		if node.IsRoot() {
			continue
		}
		par := optimize.NewBoundedParameter(&node.BranchLength, fmt.Sprintf("br%d", node.Id), minBrLen, maxBrLen)
		par.SetOnChange(m.invalidate)
		pars.Append(par)
	}
	return
}

func (m *Model) rateParameters() (pars optimize.FloatParameters) {
	for _, p := range m.parts {
		if !p.optRates {
			continue
		}
		part := p
		// GT is the reference rate
		for i := 0; i < NRates-1; i++ {
			par := optimize.NewBoundedParameter(&part.rates[i], fmt.Sprintf("%s.r%d", part.loc.name, i), minRate, maxRate)
			par.SetOnChange(part.matrixChanged)
			pars.Append(par)
		}
	}
	return
}

func (m *Model) frequencyParameters() (pars optimize.FloatParameters) {
	for _, p := range m.parts {
		if !p.optFreqs {
			continue
		}
		part := p
		for i := range part.freqs {
			par := optimize.NewBoundedParameter(&part.freqs[i], fmt.Sprintf("%s.f%c", part.loc.name, "ACGT"[i]), minFreqW, maxFreqW)
			par.SetOnChange(part.matrixChanged)
			pars.Append(par)
		}
	}
	return
}

// normalizeFrequencies rescales frequency weights to sum to one. The
// likelihood does not change.
func (m *Model) normalizeFrequencies() {
	for _, p := range m.parts {
		pi := p.pi()
		copy(p.freqs[:], pi)
	}
}

func (m *Model) alphaParameters() (pars optimize.FloatParameters) {
	for _, p := range m.parts {
		if !p.optAlpha || p.nCat == 1 {
			continue
		}
		part := p
		par := optimize.NewBoundedParameter(&part.alpha, part.loc.name+".alpha", minAlpha, maxAlpha)
		par.SetOnChange(part.alphaChanged)
		pars.Append(par)
	}
	return
}

// Fit alternates optimization of the selected parameter groups and
// branch lengths until the improvement is at most opts.Epsilon.
// Parameters set as not optimizable are kept fixed.
func (m *Model) Fit(opts em.FitOptions) error {
	m.startTree()
	var groups []func() optimize.FloatParameters
	if opts.Rates {
		groups = append(groups, m.rateParameters)
	}
	if opts.Frequencies {
		groups = append(groups, m.frequencyParameters)
	}
	if opts.Alpha {
		groups = append(groups, m.alphaParameters)
	}
	if len(groups) == 0 && !opts.BranchLengths {
		return nil
	}
	branches := func() optimize.FloatParameters {
		return m.branchParameters(m.tree.Nodes())
	}

	l := m.Likelihood()
	log.Debugf("fit start: lnL=%f", l)
	for round := 0; round < maxFitRounds; round++ {
		prev := l
		for _, group := range groups {
			l = m.maximize(group())
			if opts.BranchLengths {
				l = m.maximize(branches())
			}
		}
		if len(groups) == 0 {
			l = m.maximize(branches())
		}
		if opts.Frequencies {
			m.normalizeFrequencies()
		}
		delta := l - prev
		log.Debugf("fit round %d: lnL=%f (%+g)", round, l, delta)
		if delta < 0 {
			log.Debugf("likelihood decreased by %g, stopping", -delta)
			break
		}
		if delta <= opts.Epsilon {
			break
		}
	}
	return nil
}
