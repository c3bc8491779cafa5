package em

import (
	"math"
	"math/rand"
	"testing"

	"github.com/op/go-logging"
)

const smallDiff = 1e-9

func init() {
	logging.SetLevel(logging.WARNING, "em")
	logging.SetLevel(logging.WARNING, "workpool")
}

func TestGroupCount(tst *testing.T) {
	cases := []struct {
		a []int
		g int
	}{
		{[]int{0}, 1},
		{[]int{0, 0, 0, 0, 1, 1, 2, 1, 1, 1, 2, 2, 2, 2, 0}, 3},
		{[]int{4, 1}, 5},
		{[]int{}, 0},
	}
	for _, c := range cases {
		if g := GroupCount(c.a); g != c.g {
			tst.Errorf("GroupCount(%v)=%d, expected %d", c.a, g, c.g)
		}
	}
}

func TestRestrictedGrowth(tst *testing.T) {
	cases := []struct {
		in, out []int
	}{
		{[]int{5, 5, 2, 2, 9, 5}, []int{0, 0, 1, 1, 2, 0}},
		{[]int{2, 1, 0}, []int{0, 1, 2}},
		{[]int{0, 1, 1, 0}, []int{0, 1, 1, 0}},
		{[]int{}, []int{}},
	}
	for _, c := range cases {
		r := RestrictedGrowth(c.in)
		if len(r) != len(c.out) {
			tst.Fatalf("RestrictedGrowth(%v)=%v, expected %v", c.in, r, c.out)
		}
		for i := range r {
			if r[i] != c.out[i] {
				tst.Errorf("RestrictedGrowth(%v)=%v, expected %v", c.in, r, c.out)
				break
			}
		}
	}
}

func TestRandomAssignment(tst *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 30; n++ {
		for g := 1; g <= n; g++ {
			a := MakeRandomAssignment(rng, g, n)
			if len(a) != n {
				tst.Fatalf("Length %d, expected %d", len(a), n)
			}
			seen := make([]bool, g)
			for _, v := range a {
				if v < 0 || v >= g {
					tst.Fatalf("Value %d out of [0, %d)", v, g)
				}
				seen[v] = true
			}
			for v, ok := range seen {
				if !ok {
					tst.Errorf("Group %d is missing in %v", v, a)
				}
			}
		}
	}
}

func TestRandomAssignmentIndependent(tst *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := MakeRandomAssignment(rng, 3, 100)
	b := MakeRandomAssignment(rng, 3, 100)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
	}
	if same {
		tst.Error("Two consecutive draws are identical")
	}
}

func TestProportions(tst *testing.T) {
	a := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2}
	for _, p := range proportions(a, 3, 1) {
		if p != 6.0/18.0 {
			tst.Errorf("Proportion %v, expected 6/18", p)
		}
	}

	a = []int{0, 0, 0, 0, 1, 1, 2, 1, 1, 1, 2, 2, 2, 2, 0}
	counts := []float64{5, 5, 5}
	a[0] = 1
	counts[0], counts[1] = 4, 6
	for _, pc := range []float64{0, 0.5, 1, 3, 100} {
		props := proportions(a, 3, pc)
		sum := 0.0
		for g, p := range props {
			expected := (counts[g] + pc) / (15 + pc*3)
			if math.Abs(p-expected) > smallDiff {
				tst.Errorf("pseudocount=%v, group %d: %v, expected %v", pc, g, p, expected)
			}
			sum += p
		}
		if math.Abs(sum-1) > smallDiff {
			tst.Errorf("pseudocount=%v: proportions sum to %v", pc, sum)
		}
	}
}
