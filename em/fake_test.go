package em

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// fakeBuilder builds models where every locus prefers the tree
// "T<truth>". Fitting picks the tree of the majority of the loci.
type fakeBuilder struct {
	truth  []int
	builds int32
}

func (b *fakeBuilder) NLoci() int {
	return len(b.truth)
}

func (b *fakeBuilder) Build(loci []int) (Model, error) {
	atomic.AddInt32(&b.builds, 1)
	m := &fakeModel{
		truth: make([]int, len(loci)),
		alpha: make([]float64, len(loci)),
		freqs: make([][]float64, len(loci)),
		rates: make([][]float64, len(loci)),
	}
	for k, l := range loci {
		if l < 0 || l >= len(b.truth) {
			return nil, fmt.Errorf("no locus %d", l)
		}
		m.truth[k] = b.truth[l]
		m.alpha[k] = 1
		m.freqs[k] = []float64{0.25, 0.25, 0.25, 0.25}
		m.rates[k] = []float64{1, 1, 1, 1, 1, 1}
	}
	m.tree = "T0"
	return m, nil
}

type fakeModel struct {
	truth []int
	tree  string
	alpha []float64
	freqs [][]float64
	rates [][]float64
}

func (m *fakeModel) part(k int) float64 {
	if m.tree == fmt.Sprintf("T%d", m.truth[k]) {
		return -1
	}
	return -10
}

func (m *fakeModel) Likelihood() (l float64) {
	for k := range m.truth {
		l += m.part(k)
	}
	return
}

func (m *fakeModel) Fit(opts FitOptions) error {
	counts := make(map[int]int)
	best := 0
	for _, t := range m.truth {
		counts[t]++
		if counts[t] > counts[best] || (counts[t] == counts[best] && t < best) {
			best = t
		}
	}
	m.tree = fmt.Sprintf("T%d", best)
	if opts.Alpha {
		for k := range m.alpha {
			m.alpha[k] = 0.5
		}
	}
	return nil
}

func (m *fakeModel) SearchTopology(optimizeModel bool) error {
	return m.Fit(FitOptions{Alpha: optimizeModel})
}

func (m *fakeModel) Tree() string {
	return m.tree
}

func (m *fakeModel) SetTree(t string) error {
	if !strings.HasPrefix(t, "T") {
		return errors.New("bad tree")
	}
	m.tree = t
	return nil
}

func (m *fakeModel) NPartitions() int {
	return len(m.truth)
}

func (m *fakeModel) check(p int) error {
	if p < 0 || p >= len(m.truth) {
		return fmt.Errorf("partition %d out of range", p)
	}
	return nil
}

func (m *fakeModel) PartitionLength(p int) (int, error) {
	return 10, m.check(p)
}

func (m *fakeModel) PartitionLikelihood(p int) (float64, error) {
	if err := m.check(p); err != nil {
		return 0, err
	}
	return m.part(p), nil
}

func (m *fakeModel) Alpha(p int) (float64, error) {
	if err := m.check(p); err != nil {
		return 0, err
	}
	return m.alpha[p], nil
}

func (m *fakeModel) SetAlpha(p int, alpha float64, optimizable bool) error {
	if err := m.check(p); err != nil {
		return err
	}
	m.alpha[p] = alpha
	return nil
}

func (m *fakeModel) Frequencies(p int) ([]float64, error) {
	if err := m.check(p); err != nil {
		return nil, err
	}
	return append([]float64(nil), m.freqs[p]...), nil
}

func (m *fakeModel) SetFrequencies(p int, f []float64, optimizable bool) error {
	if err := m.check(p); err != nil {
		return err
	}
	if len(f) != 4 {
		return errors.New("wrong frequency length")
	}
	m.freqs[p] = append([]float64(nil), f...)
	return nil
}

func (m *fakeModel) Rates(p int) ([]float64, error) {
	if err := m.check(p); err != nil {
		return nil, err
	}
	return append([]float64(nil), m.rates[p]...), nil
}

func (m *fakeModel) SetRates(p int, r []float64, optimizable bool) error {
	if err := m.check(p); err != nil {
		return err
	}
	if len(r) != 6 {
		return errors.New("wrong rates length")
	}
	m.rates[p] = append([]float64(nil), r...)
	return nil
}
