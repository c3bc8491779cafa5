package main

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/phylem/emtree/em"
)

// writeTrees writes group trees one per line.
func writeTrees(fn string, groups []em.Group) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if _, err := fmt.Fprintln(f, g.Tree); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// posteriorGrid is the posterior matrix with groups along X and loci
// along Y.
type posteriorGrid [][]float64

func (g posteriorGrid) Dims() (c, r int)   { return len(g[0]), len(g) }
func (g posteriorGrid) Z(c, r int) float64 { return g[r][c] }
func (g posteriorGrid) X(c int) float64    { return float64(c) }
func (g posteriorGrid) Y(r int) float64    { return float64(r) }

// writePlots plots the likelihood trace to prefix-lnl.png and the
// posterior to prefix-posterior.png.
func writePlots(prefix string, trace []float64, posterior [][]float64) error {
	if len(trace) > 0 {
		p := plot.New()
		p.Title.Text = "EM log-likelihood"
		p.X.Label.Text = "iteration"
		p.Y.Label.Text = "lnL"
		pts := make(plotter.XYs, len(trace))
		for i, l := range trace {
			pts[i].X = float64(i + 1)
			pts[i].Y = l
		}
		if err := plotutil.AddLinePoints(p, "lnL", pts); err != nil {
			return err
		}
		if err := p.Save(6*vg.Inch, 4*vg.Inch, prefix+"-lnl.png"); err != nil {
			return err
		}
	}

	if len(posterior) == 0 || len(posterior[0]) == 0 {
		return errors.New("no posterior to plot")
	}
	p := plot.New()
	p.Title.Text = "Posterior"
	p.X.Label.Text = "group"
	p.Y.Label.Text = "locus"
	h := plotter.NewHeatMap(posteriorGrid(posterior), palette.Heat(16, 1))
	h.Min, h.Max = 0, 1
	p.Add(h)
	height := vg.Length(len(posterior))*0.2*vg.Inch + 2*vg.Inch
	return p.Save(4*vg.Inch, height, prefix+"-posterior.png")
}
