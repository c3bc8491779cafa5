package table

import (
	"math"
	"math/rand"
	"testing"
)

const smallDiff = 1e-9

func appreq(a, b float64) bool {
	return math.Abs(a-b) <= smallDiff*math.Max(1, math.Abs(b))
}

func cmp(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !appreq(a[i], b[i]) {
			return false
		}
	}
	return true
}

func example() *Table {
	t := New(2, 3)
	for i, v := range []float64{1, 2, 3, 4, 5, 9} {
		t.Set(i/3, i%3, v)
	}
	return t
}

func TestReductions(tst *testing.T) {
	t := example()
	if r, c := t.Dims(); r != 2 || c != 3 {
		tst.Fatalf("Wrong dimensions %dx%d", r, c)
	}
	if !cmp(t.RowSums(), []float64{6, 18}) {
		tst.Error("RowSums:", t.RowSums())
	}
	if !cmp(t.ColSums(), []float64{5, 7, 12}) {
		tst.Error("ColSums:", t.ColSums())
	}
	if !appreq(t.Sum(), 24) {
		tst.Error("Sum:", t.Sum())
	}
	if !cmp(t.RowMeans(), []float64{2, 6}) {
		tst.Error("RowMeans:", t.RowMeans())
	}
	if !cmp(t.ColMeans(), []float64{2.5, 3.5, 6}) {
		tst.Error("ColMeans:", t.ColMeans())
	}
	if !appreq(t.Mean(), 4) {
		tst.Error("Mean:", t.Mean())
	}
	if !cmp(t.RowMax(), []float64{3, 9}) {
		tst.Error("RowMax:", t.RowMax())
	}
	// reductions do not change the table
	if t.Get(1, 2) != 9 {
		tst.Error("Table was modified")
	}
}

func TestArgMaxTies(tst *testing.T) {
	t := New(1, 4)
	t.SetRow(0, []float64{0.1, 0.4, 0.4, 0.1})
	if j := t.ArgMaxRow(0); j != 1 {
		tst.Error("Expected lowest index on a tie, got", j)
	}
}

func TestNormalizeRows(tst *testing.T) {
	rng := rand.New(rand.NewSource(1))
	t := New(50, 5)
	for i := 0; i < 50; i++ {
		// wide range of magnitudes, including ones which
		// overflow a naive exp
		scale := math.Pow(10, float64(i%8))
		for j := 0; j < 5; j++ {
			t.Set(i, j, (rng.Float64()-0.5)*scale)
		}
	}
	t.Set(0, 0, math.Inf(-1))
	t.NormalizeRows()
	for i, s := range t.RowSums() {
		if !appreq(s, 1) {
			tst.Errorf("Row %d sums to %v", i, s)
		}
		for _, v := range t.Row(i) {
			if v < 0 || v > 1 || math.IsNaN(v) {
				tst.Errorf("Row %d has value %v out of [0, 1]", i, v)
			}
		}
	}
	if t.Get(0, 0) != 0 {
		tst.Error("-Inf should become 0, got", t.Get(0, 0))
	}
}

func TestNormalizeKnown(tst *testing.T) {
	t := New(2, 2)
	t.SetRow(0, []float64{-1000, -1000})
	t.SetRow(1, []float64{math.Log(1), math.Log(3)})
	t.NormalizeRows()
	if !cmp(t.Row(0), []float64{0.5, 0.5}) {
		tst.Error("Row 0:", t.Row(0))
	}
	if !cmp(t.Row(1), []float64{0.25, 0.75}) {
		tst.Error("Row 1:", t.Row(1))
	}
}

func TestNormalizeAllInf(tst *testing.T) {
	t := New(1, 4)
	for j := 0; j < 4; j++ {
		t.Set(0, j, math.Inf(-1))
	}
	t.NormalizeRows()
	if !cmp(t.Row(0), []float64{0.25, 0.25, 0.25, 0.25}) {
		tst.Error("Expected uniform row, got", t.Row(0))
	}
}
