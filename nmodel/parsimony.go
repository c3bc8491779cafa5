package nmodel

import (
	"math"

	"github.com/phylem/emtree/tree"
)

// parsimony returns the weighted Fitch parsimony score of the tree
// over all the partitions.
func (m *Model) parsimony(t *tree.Tree) (score float64) {
	leafTaxon := m.leafTaxa(t)
	sets := make([]uint8, t.NNodes())
	order := t.NodeOrder()
	for _, p := range m.parts {
		for k, pattern := range p.loc.patterns {
			w := p.loc.weights[k]
			for _, node := range order {
				var s uint8
				for i, child := range node.ChildNodes() {
					cs := sets[child.Id]
					if child.IsTerminal() {
						cs = pattern[leafTaxon[child.Id]]
					}
					switch {
					case i == 0:
						s = cs
					case s&cs == 0:
						s |= cs
						score += w
					default:
						s &= cs
					}
				}
				sets[node.Id] = s
			}
		}
	}
	return
}

// stepwiseTree builds a starting tree by adding the sequences in a
// random order, every one to the branch giving the lowest parsimony
// score.
func (m *Model) stepwiseTree() *tree.Tree {
	names := m.data.names
	order := m.rng.Perm(len(names))
	first := make([]string, 0, 3)
	for _, i := range order[:3] {
		first = append(first, names[i])
	}
	t := tree.NewStar(first, defaultBrLen)
	for _, i := range order[3:] {
		var best *tree.Tree
		bestScore := math.Inf(1)
		for _, node := range t.Nodes() {
			if node.IsRoot() {
				continue
			}
			c := t.Copy()
			if _, err := c.InsertLeaf(c.Nodes()[node.Id], names[i], defaultBrLen); err != nil {
				panic(err)
			}
			if score := m.parsimony(c); score < bestScore {
				best, bestScore = c, score
			}
		}
		t = best
	}
	t.Renumber()
	for node := range t.Walker(nil) {
		if !node.IsRoot() {
			node.BranchLength = defaultBrLen
		}
	}
	log.Debugf("stepwise addition tree: %s", t)
	return t
}
