package nmodel

import (
	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/optimize"
	"github.com/phylem/emtree/tree"
)

const (
	maxSearchRounds = 20
	// an NNI is accepted if it improves the likelihood by more
	// than this.
	nniEpsilon = 1e-3
	// searchEpsilon is the tolerance of fits between the rounds.
	searchEpsilon = 0.01
)

// SearchTopology hill-climbs over nearest neighbour interchanges.
// After every NNI the branches around the edge are optimized, a move
// is kept only if it improves the likelihood. Between the rounds all
// branch lengths (and model parameters if optimizeModel is set) are
// refitted.
func (m *Model) SearchTopology(optimizeModel bool) error {
	opts := em.FitOptions{
		Rates:         optimizeModel,
		Frequencies:   optimizeModel,
		Alpha:         optimizeModel,
		BranchLengths: true,
		Epsilon:       searchEpsilon,
	}
	if err := m.Fit(opts); err != nil {
		return err
	}
	best := m.Likelihood()
	for round := 0; round < maxSearchRounds; round++ {
		moves := 0
		for _, node := range m.tree.InternalEdges() {
			for c := range node.ChildNodes() {
				if l, ok := m.tryNNI(node, c, best); ok {
					best = l
					moves++
				}
			}
		}
		log.Debugf("NNI round %d: %d moves, lnL=%f", round, moves, best)
		if moves == 0 {
			break
		}
		if err := m.Fit(opts); err != nil {
			return err
		}
		best = m.Likelihood()
	}
	return nil
}

// tryNNI performs the interchange and keeps it if the likelihood
// improves over best. Otherwise the tree is restored.
func (m *Model) tryNNI(node *tree.Node, child int, best float64) (float64, bool) {
	saved := m.branchLengths()
	if err := m.tree.NNI(node, child); err != nil {
		return best, false
	}
	m.invalidate()
	l := m.maximize(m.localBranches(node))
	if l > best+nniEpsilon {
		return l, true
	}
	// NNI is its own inverse
	if err := m.tree.NNI(node, child); err != nil {
		panic(err)
	}
	m.setBranchLengths(saved)
	return best, false
}

// localBranches returns parameters of the branches adjacent to the
// edge above node.
func (m *Model) localBranches(node *tree.Node) optimize.FloatParameters {
	nodes := []*tree.Node{node}
	nodes = append(nodes, node.ChildNodes()...)
	for _, s := range node.Parent.ChildNodes() {
		if s != node {
			nodes = append(nodes, s)
		}
	}
	if !node.Parent.IsRoot() {
		nodes = append(nodes, node.Parent)
	}
	return m.branchParameters(nodes)
}

func (m *Model) branchLengths() []float64 {
	nodes := m.tree.Nodes()
	res := make([]float64, len(nodes))
	for i, node := range nodes {
		res[i] = node.BranchLength
	}
	return res
}

func (m *Model) setBranchLengths(brlens []float64) {
	for i, node := range m.tree.Nodes() {
		node.BranchLength = brlens[i]
	}
	m.invalidate()
}
