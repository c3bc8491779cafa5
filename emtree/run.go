package main

import (
	"errors"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phylem/emtree/checkpoint"
	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/nmodel"
	"github.com/phylem/emtree/workpool"
)

// runMetrics are exported if metrics are enabled.
type runMetrics struct {
	likelihood prometheus.Gauge
	iterations prometheus.Counter
	changes    prometheus.Counter
}

func newRunMetrics(reg prometheus.Registerer) *runMetrics {
	m := &runMetrics{
		likelihood: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emtree_likelihood",
			Help: "Log-likelihood after the last M-step.",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emtree_iterations_total",
			Help: "Number of EM iterations performed.",
		}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emtree_assignment_changes_total",
			Help: "Number of iterations changing the assignment.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.likelihood, m.iterations, m.changes)
	}
	return m
}

// run performs the EM iterations until the assignment and the
// likelihood converge or the iteration limit is reached.
func run(s *runSettings) (*RunSummary, error) {
	summary := &RunSummary{Run: uuid.New().String()}
	metrics := newRunMetrics(s.registerer)

	data, err := nmodel.ReadData(s.alignment, s.partitions)
	if err != nil {
		return nil, err
	}
	builder, err := nmodel.NewBuilder(data, s.attr)
	if err != nil {
		return nil, err
	}
	builder.Maximizer = s.maximizer
	log.Infof("Model: GTR, rates=%s, categories=%d", s.attr.RateModel, s.attr.Categories)

	pool, err := workpool.New(s.threads, workpool.WithRegisterer(s.registerer))
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	o := em.NewOptimiser(builder, pool, rand.New(rand.NewSource(s.seed)))
	o.SetSchedule(s.schedule)
	o.SetClassifier(s.classifier)
	o.SetEpsilon(s.epsilon)
	o.SetPseudocount(s.pseudocount)
	log.Infof("Schedule: %v, classifier: %v", s.schedule, s.classifier)

	var cp *checkpoint.CheckpointIO
	var saved *checkpoint.Data
	if s.checkpoint != "" {
		db, err := checkpoint.Open(s.checkpoint)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		cp = checkpoint.NewCheckpointIO(db, s.checkpointKey(), s.checkpointSeconds)
		if saved, err = cp.Load(); err != nil {
			return nil, err
		}
	}

	iter := 0
	switch {
	case saved != nil:
		if err := o.Restore(saved.State); err != nil {
			return nil, err
		}
		summary.Run = saved.Run
		iter = saved.Iteration
	case s.assignment != nil:
		if err := o.SetAssignment(s.assignment); err != nil {
			return nil, err
		}
	default:
		if err := o.SetRandomAssignment(s.groups); err != nil {
			return nil, err
		}
	}
	log.Noticef("Run %s: %d loci, %d groups", summary.Run, builder.NLoci(), o.NGroups())

	changed := true
	prev := math.Inf(-1)
	if saved != nil && saved.Final {
		summary.Converged = true
		changed = false
	}
	for !summary.Converged && iter < s.iterations {
		if changed, err = o.Iterate(); err != nil {
			return nil, err
		}
		iter++
		l := o.Likelihood()
		summary.Trace = append(summary.Trace, l)
		metrics.iterations.Inc()
		metrics.likelihood.Set(l)
		if changed {
			metrics.changes.Inc()
		}
		log.Noticef("iter=%d, lnL=%f, groups=%d, changed=%v", iter, l, o.NGroups(), changed)

		summary.Converged = !changed && math.Abs(l-prev) < s.epsilon
		prev = l
		if cp != nil && cp.Old() {
			if err := cp.Save(&checkpoint.Data{Run: summary.Run, Iteration: iter, State: o.State()}); err != nil {
				return nil, err
			}
		}
	}
	if !summary.Converged {
		log.Warningf("No convergence after %d iterations", iter)
	}

	// parameters, trees and posteriors should correspond to the
	// final assignment
	if changed {
		if err := o.MStep(); err != nil {
			return nil, err
		}
	}
	if o.State().HaveParameters {
		if err := o.EStep(); err != nil {
			return nil, err
		}
	}
	if cp != nil {
		if err := cp.Save(&checkpoint.Data{Run: summary.Run, Iteration: iter, Final: summary.Converged, State: o.State()}); err != nil {
			return nil, err
		}
	}

	summary.Iterations = iter
	summary.Likelihood = o.Likelihood()
	summary.Assignment = o.Assignment()
	summary.Groups = o.Groups()
	summary.Proportions = o.CurrentProportions()
	summary.Parameters = o.Parameters()
	summary.Loci = make([]string, data.NLoci())
	for i := range summary.Loci {
		summary.Loci[i] = data.LocusName(i)
	}
	t := o.Table()
	rows, cols := t.Dims()
	summary.Posterior = make([][]float64, rows)
	for i := 0; i < rows; i++ {
		summary.Posterior[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			summary.Posterior[i][j] = t.Get(i, j)
		}
	}

	for g, group := range summary.Groups {
		log.Noticef("group %d: p=%f, lnL=%f, tree=%s", g, summary.Proportions[g], group.Likelihood, group.Tree)
	}
	log.Noticef("lnL=%f", summary.Likelihood)
	if math.IsInf(summary.Likelihood, -1) {
		return summary, errors.New("zero likelihood")
	}
	return summary, nil
}
