// Package table provides a dense real-valued matrix of loci (rows) by
// groups (columns) with the reductions needed by the EM algorithm.
package table

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Table is a rows x cols matrix. Indices are not checked beyond what
// the underlying matrix does.
type Table struct {
	m *mat.Dense
}

// New creates a zero table. Both dimensions must be positive.
func New(rows, cols int) *Table {
	return &Table{m: mat.NewDense(rows, cols, nil)}
}

// Dims returns the number of rows and columns.
func (t *Table) Dims() (rows, cols int) {
	return t.m.Dims()
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	r, _ := t.m.Dims()
	return r
}

// Cols returns the number of columns.
func (t *Table) Cols() int {
	_, c := t.m.Dims()
	return c
}

// Get returns the value at (row, col).
func (t *Table) Get(row, col int) float64 {
	return t.m.At(row, col)
}

// Set changes the value at (row, col).
func (t *Table) Set(row, col int, v float64) {
	t.m.Set(row, col, v)
}

// SetRow copies v into a row.
func (t *Table) SetRow(row int, v []float64) {
	t.m.SetRow(row, v)
}

// Row returns a copy of a row.
func (t *Table) Row(row int) []float64 {
	return mat.Row(nil, row, t.m)
}

// RowSums returns the sum of every row.
func (t *Table) RowSums() []float64 {
	res := make([]float64, t.Rows())
	for i := range res {
		res[i] = floats.Sum(t.m.RawRowView(i))
	}
	return res
}

// ColSums returns the sum of every column.
func (t *Table) ColSums() []float64 {
	res := make([]float64, t.Cols())
	for i := 0; i < t.Rows(); i++ {
		floats.Add(res, t.m.RawRowView(i))
	}
	return res
}

// Sum returns the sum of all the values.
func (t *Table) Sum() float64 {
	return mat.Sum(t.m)
}

// RowMeans returns the mean of every row.
func (t *Table) RowMeans() []float64 {
	res := t.RowSums()
	floats.Scale(1/float64(t.Cols()), res)
	return res
}

// ColMeans returns the mean of every column.
func (t *Table) ColMeans() []float64 {
	res := t.ColSums()
	floats.Scale(1/float64(t.Rows()), res)
	return res
}

// Mean returns the mean of all the values.
func (t *Table) Mean() float64 {
	r, c := t.m.Dims()
	return t.Sum() / float64(r*c)
}

// RowMax returns the maximum of every row.
func (t *Table) RowMax() []float64 {
	res := make([]float64, t.Rows())
	for i := range res {
		res[i] = floats.Max(t.m.RawRowView(i))
	}
	return res
}

// ArgMaxRow returns the column of the row maximum. Ties are resolved
// to the lowest column.
func (t *Table) ArgMaxRow(row int) int {
	return floats.MaxIdx(t.m.RawRowView(row))
}

// NormalizeRows turns every row of log-values into probabilities:
// x_j is replaced by exp(x_j - logsumexp(x)). A row where every value
// is -Inf becomes uniform. Applying it twice is not meaningful.
func (t *Table) NormalizeRows() {
	for i := 0; i < t.Rows(); i++ {
		row := t.m.RawRowView(i)
		lse := floats.LogSumExp(row)
		if math.IsInf(lse, -1) {
			for j := range row {
				row[j] = 1 / float64(len(row))
			}
			continue
		}
		for j, v := range row {
			row[j] = math.Exp(v - lse)
		}
	}
}

// String returns tab-separated rows.
func (t *Table) String() string {
	var b strings.Builder
	for i := 0; i < t.Rows(); i++ {
		for j, v := range t.m.RawRowView(i) {
			if j != 0 {
				b.WriteByte('\t')
			}
			b.WriteString(strconv.FormatFloat(v, 'g', 6, 64))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
