package em

import (
	"math/rand"
)

// GroupCount returns 1+max(a), or 0 for an empty assignment.
func GroupCount(a []int) int {
	g := -1
	for _, v := range a {
		if v > g {
			g = v
		}
	}
	return g + 1
}

// RestrictedGrowth relabels groups in order of first occurrence, so
// that the first label becomes 0, the next new one 1 and so on.
func RestrictedGrowth(a []int) []int {
	res, _ := relabel(a)
	return res
}

// relabel is RestrictedGrowth which also returns the mapping from the
// old labels to the new ones.
func relabel(a []int) ([]int, map[int]int) {
	res := make([]int, len(a))
	m := make(map[int]int)
	for i, v := range a {
		nv, ok := m[v]
		if !ok {
			nv = len(m)
			m[v] = nv
		}
		res[i] = nv
	}
	return res, m
}

// MakeRandomAssignment returns n group labels from [0, g) where every
// label is used at least once (g <= n).
func MakeRandomAssignment(rng *rand.Rand, g, n int) []int {
	a := make([]int, n)
	for i := range a {
		if i < g {
			a[i] = i
		} else {
			a[i] = rng.Intn(g)
		}
	}
	rng.Shuffle(n, func(i, j int) {
		a[i], a[j] = a[j], a[i]
	})
	return a
}

// proportions computes (count_g + pseudocount) / (n + pseudocount*G)
// for each of the G groups.
func proportions(a []int, ngroups int, pseudocount float64) []float64 {
	res := make([]float64, ngroups)
	for _, v := range a {
		res[v]++
	}
	total := float64(len(a)) + pseudocount*float64(ngroups)
	for g := range res {
		res[g] = (res[g] + pseudocount) / total
	}
	return res
}

// buildIndex returns the loci of every group in increasing order.
func buildIndex(a []int, ngroups int) [][]int {
	index := make([][]int, ngroups)
	for i, v := range a {
		index[v] = append(index[v], i)
	}
	return index
}
