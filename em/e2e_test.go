package em_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/op/go-logging"

	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/nmodel"
	"github.com/phylem/emtree/workpool"
)

func init() {
	logging.SetLevel(logging.WARNING, "nmodel")
	logging.SetLevel(logging.WARNING, "optimize")
}

// toy loci were simulated on three trees, five loci each.
var toyTruth = []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2}

func newToyOptimiser(tst *testing.T) *em.Optimiser {
	data, err := nmodel.ReadData("../nmodel/testdata/toy.phy", "../nmodel/testdata/toy.part")
	if err != nil {
		tst.Fatal(err)
	}
	b, err := nmodel.NewBuilder(data, nmodel.DefaultAttributes())
	if err != nil {
		tst.Fatal(err)
	}
	p, err := workpool.New(0)
	if err != nil {
		tst.Fatal(err)
	}
	tst.Cleanup(p.Close)
	return em.NewOptimiser(b, p, rand.New(rand.NewSource(1)))
}

func TestToyPosteriors(tst *testing.T) {
	if testing.Short() {
		tst.Skip("skipping end-to-end test in short mode")
	}
	o := newToyOptimiser(tst)
	if err := o.SetAssignment(toyTruth); err != nil {
		tst.Fatal(err)
	}
	if err := o.MStep(); err != nil {
		tst.Fatal(err)
	}
	sum := 0.0
	for _, g := range o.Groups() {
		sum += g.Likelihood
	}
	if math.Abs(sum-o.Likelihood()) > 1e-6 {
		tst.Errorf("Likelihood %v is not the sum of groups %v", o.Likelihood(), sum)
	}
	if err := o.EStep(); err != nil {
		tst.Fatal(err)
	}
	t := o.Table()
	if r, c := t.Dims(); r != 15 || c != 3 {
		tst.Fatalf("Wrong table dimensions: %dx%d", r, c)
	}
	for i := 0; i < 15; i++ {
		row := 0.0
		for j := 0; j < 3; j++ {
			row += t.Get(i, j)
		}
		if math.Abs(row-1) > 1e-9 {
			tst.Errorf("Row %d sums to %v", i, row)
		}
		if t.ArgMaxRow(i) != toyTruth[i] {
			tst.Errorf("Locus %d is closer to group %d", i, t.ArgMaxRow(i))
		}
	}
	changed, err := o.CStep()
	if err != nil {
		tst.Fatal(err)
	}
	if changed {
		tst.Error("Assignment changed:", o.Assignment())
	}
}

func TestToyRecovery(tst *testing.T) {
	if testing.Short() {
		tst.Skip("skipping end-to-end test in short mode")
	}
	o := newToyOptimiser(tst)
	// locus 6 misplaced, parsimony trees of all the groups are
	// still the true ones
	start := append([]int(nil), toyTruth...)
	start[6] = 0
	if err := o.SetAssignment(start); err != nil {
		tst.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		changed, err := o.Iterate()
		if err != nil {
			tst.Fatal(err)
		}
		if !changed {
			break
		}
	}
	a := em.RestrictedGrowth(o.Assignment())
	for i := range a {
		if a[i] != toyTruth[i] {
			tst.Fatal("Wrong assignment:", a)
		}
	}
	for _, p := range o.Parameters() {
		if len(p.Frequencies) != 4 || len(p.Rates) != 6 || !(p.Alpha > 0) {
			tst.Errorf("Wrong parameters: %+v", p)
		}
	}
}
