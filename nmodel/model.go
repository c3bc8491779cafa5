package nmodel

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/optimize"
	"github.com/phylem/emtree/tree"
)

// FrequencyTolerance is the allowed deviation of the sum of
// frequencies from one.
const FrequencyTolerance = 1e-6

const (
	defaultBrLen = 0.1
	minBrLen     = 1e-8
	maxBrLen     = 10
	minAlpha     = 0.02
	maxAlpha     = 100
	minRate      = 1e-3
	maxRate      = 1000
	minFreqW     = 1e-4
	maxFreqW     = 100
)

var (
	ErrFrequencySum    = errors.New("frequencies do not sum to one")
	ErrFrequencyLength = errors.New("wrong number of frequencies")
	ErrRateLength      = errors.New("wrong number of rates")
	ErrPartitionIndex  = errors.New("partition index out of range")
)

var _ em.Model = (*Model)(nil)

// Model is GTR+G over a tree shared by the partitions. Every
// partition has its own frequencies, exchangeabilities and alpha.
type Model struct {
	data      *Data
	parts     []*partition
	tree      *tree.Tree
	leafTaxon []int
	maximizer optimize.Maximizer
	rng       *rand.Rand
}

func newModel(data *Data, loci []int, nCat int, maximizer optimize.Maximizer, rng *rand.Rand) (*Model, error) {
	if len(loci) == 0 {
		return nil, errors.New("no loci")
	}
	m := &Model{
		data:      data,
		parts:     make([]*partition, len(loci)),
		maximizer: maximizer,
		rng:       rng,
	}
	for i, l := range loci {
		if l < 0 || l >= len(data.loci) {
			return nil, fmt.Errorf("locus %d out of range", l)
		}
		m.parts[i] = newPartition(data.loci[l], nCat)
	}
	return m, nil
}

// startTree builds the stepwise addition tree if no tree was set.
func (m *Model) startTree() {
	if m.tree == nil {
		m.setTree(m.stepwiseTree())
	}
}

func (m *Model) part(p int) (*partition, error) {
	if p < 0 || p >= len(m.parts) {
		return nil, ErrPartitionIndex
	}
	return m.parts[p], nil
}

// invalidate marks all the partition likelihoods for recomputation.
func (m *Model) invalidate() {
	for _, p := range m.parts {
		p.valid = false
	}
}

// Likelihood returns the sum of partition log-likelihoods.
func (m *Model) Likelihood() (lnL float64) {
	m.startTree()
	for _, p := range m.parts {
		lnL += p.likelihood(m.tree, m.leafTaxon)
	}
	if math.IsNaN(lnL) {
		lnL = math.Inf(-1)
	}
	return
}

func (m *Model) NPartitions() int {
	return len(m.parts)
}

func (m *Model) PartitionLength(p int) (int, error) {
	part, err := m.part(p)
	if err != nil {
		return 0, err
	}
	return part.loc.nSites, nil
}

func (m *Model) PartitionLikelihood(p int) (float64, error) {
	part, err := m.part(p)
	if err != nil {
		return 0, err
	}
	m.startTree()
	return part.likelihood(m.tree, m.leafTaxon), nil
}

// Tree returns the current tree in the Newick format.
func (m *Model) Tree() string {
	m.startTree()
	return m.tree.String()
}

// SetTree replaces the tree. The tree has to contain exactly the
// sequences of the alignment, rooted trees are unrooted.
func (m *Model) SetTree(newick string) error {
	t, err := tree.ParseNewick(strings.NewReader(newick))
	if err != nil {
		return err
	}
	if err := t.Unroot(); err != nil {
		return err
	}
	names := append([]string(nil), m.data.names...)
	sort.Strings(names)
	leaves := t.LeafNames()
	if len(leaves) != len(names) {
		return fmt.Errorf("tree has %d leaves, alignment has %d sequences", len(leaves), len(names))
	}
	for i := range names {
		if names[i] != leaves[i] {
			return fmt.Errorf("leaf %s does not match the alignment", leaves[i])
		}
	}
	m.setTree(t)
	return nil
}

func (m *Model) setTree(t *tree.Tree) {
	m.tree = t
	m.leafTaxon = m.leafTaxa(t)
	for _, p := range m.parts {
		p.plh = nil
		p.pm = nil
	}
	m.invalidate()
}

// leafTaxa maps node ids of the leaves to the sequence indices.
func (m *Model) leafTaxa(t *tree.Tree) []int {
	res := make([]int, t.NNodes())
	for node := range t.Terminals() {
		res[node.Id] = m.data.taxa[node.Name]
	}
	return res
}

func (m *Model) Alpha(p int) (float64, error) {
	part, err := m.part(p)
	if err != nil {
		return 0, err
	}
	return part.alpha, nil
}

func (m *Model) SetAlpha(p int, alpha float64, optimizable bool) error {
	part, err := m.part(p)
	if err != nil {
		return err
	}
	if !(alpha > 0) || math.IsInf(alpha, 0) {
		return fmt.Errorf("invalid alpha: %v", alpha)
	}
	part.alpha = alpha
	part.optAlpha = optimizable
	part.alphaChanged()
	return nil
}

// Frequencies returns the equilibrium frequencies of A, C, G and T.
func (m *Model) Frequencies(p int) ([]float64, error) {
	part, err := m.part(p)
	if err != nil {
		return nil, err
	}
	return part.pi(), nil
}

func (m *Model) SetFrequencies(p int, freqs []float64, optimizable bool) error {
	part, err := m.part(p)
	if err != nil {
		return err
	}
	if len(freqs) != nStates {
		return ErrFrequencyLength
	}
	sum := 0.0
	for _, f := range freqs {
		if f < 0 || math.IsNaN(f) {
			return fmt.Errorf("negative frequency: %v", f)
		}
		sum += f
	}
	if math.Abs(sum-1) > FrequencyTolerance {
		return ErrFrequencySum
	}
	copy(part.freqs[:], freqs)
	part.optFreqs = optimizable
	part.matrixChanged()
	return nil
}

// Rates returns the exchangeabilities AC, AG, AT, CG, CT and GT.
func (m *Model) Rates(p int) ([]float64, error) {
	part, err := m.part(p)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), part.rates[:]...), nil
}

func (m *Model) SetRates(p int, rates []float64, optimizable bool) error {
	part, err := m.part(p)
	if err != nil {
		return err
	}
	if len(rates) != NRates {
		return ErrRateLength
	}
	for _, r := range rates {
		if !(r > 0) || math.IsInf(r, 0) {
			return fmt.Errorf("invalid rate: %v", r)
		}
	}
	copy(part.rates[:], rates)
	part.optRates = optimizable
	part.matrixChanged()
	return nil
}
