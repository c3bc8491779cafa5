// Package em clusters loci into groups sharing a phylogenetic tree
// with an expectation-maximization procedure.
//
// The Optimiser keeps the assignment of loci to groups, per-locus
// parameter estimates, per-group trees and mixing proportions. MStep
// fits every group in parallel on a workpool, EStep evaluates every
// locus under every group tree and CStep reassigns loci.
package em

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/op/go-logging"

	"github.com/phylem/emtree/table"
	"github.com/phylem/emtree/workpool"
)

var log = logging.MustGetLogger("em")

var (
	// ErrNoAssignment is returned by steps run before an
	// assignment was set.
	ErrNoAssignment = errors.New("em: no assignment")
	// ErrNoParameters is returned by EStep before the first
	// MStep.
	ErrNoParameters = errors.New("em: no fitted parameters")
)

const (
	// DefaultEpsilon is the default convergence threshold.
	DefaultEpsilon = 0.01
	// DefaultPseudocount is the default pseudocount used for
	// proportions in MStep.
	DefaultPseudocount = 1
)

// Optimiser drives the EM iterations. It is not safe for concurrent
// use; the parallelism is internal.
type Optimiser struct {
	builder ModelBuilder
	pool    workpool.Spawner
	rng     *rand.Rand

	schedule    Schedule
	classifier  Classifier
	epsilon     float64
	pseudocount float64

	assignment  []int
	index       [][]int
	groups      []Group
	params      []Parameters
	haveParams  bool
	proportions []float64
	table       *table.Table
	lnl         float64
	step        int
}

// NewOptimiser creates an optimiser. Tasks are submitted to pool and
// all randomness comes from rng. The pool may be a worker if the
// optimiser itself runs as a pool task.
func NewOptimiser(builder ModelBuilder, pool workpool.Spawner, rng *rand.Rand) *Optimiser {
	return &Optimiser{
		builder:     builder,
		pool:        pool,
		rng:         rng,
		schedule:    ModelParameters,
		classifier:  MAP,
		epsilon:     DefaultEpsilon,
		pseudocount: DefaultPseudocount,
		params:      make([]Parameters, builder.NLoci()),
		lnl:         math.Inf(-1),
	}
}

// SetSchedule changes the M-step schedule.
func (o *Optimiser) SetSchedule(s Schedule) {
	o.schedule = s
}

// SetClassifier changes the C-step classifier.
func (o *Optimiser) SetClassifier(c Classifier) {
	o.classifier = c
}

// SetEpsilon changes the convergence threshold passed to the model.
func (o *Optimiser) SetEpsilon(eps float64) {
	o.epsilon = eps
}

// SetPseudocount changes the pseudocount of the M-step proportions.
func (o *Optimiser) SetPseudocount(p float64) {
	o.pseudocount = p
}

// SetAssignment sets the group of every locus. Labels need not be
// contiguous; G is 1+max(a). Group trees are reset, saved per-locus
// parameters are kept.
func (o *Optimiser) SetAssignment(a []int) error {
	if len(a) != o.builder.NLoci() {
		return fmt.Errorf("assignment length %d, expected %d loci", len(a), o.builder.NLoci())
	}
	for i, v := range a {
		if v < 0 {
			return fmt.Errorf("negative group %d for locus %d", v, i)
		}
	}
	o.setAssignment(append([]int(nil), a...), make([]Group, GroupCount(a)))
	return nil
}

// SetRandomAssignment assigns loci to g groups at random, using every
// group at least once.
func (o *Optimiser) SetRandomAssignment(g int) error {
	n := o.builder.NLoci()
	if g < 1 || g > n {
		return fmt.Errorf("cannot split %d loci into %d groups", n, g)
	}
	return o.SetAssignment(MakeRandomAssignment(o.rng, g, n))
}

func (o *Optimiser) setAssignment(a []int, groups []Group) {
	ng := len(groups)
	o.assignment = a
	o.groups = groups
	o.index = buildIndex(a, ng)
	o.table = table.New(len(a), ng)
	o.proportions = proportions(a, ng, o.pseudocount)
	log.Infof("assignment: %d loci in %d groups", len(a), ng)
	log.Debugf("assignment: %v", a)
}

// Proportions returns (count_g + pseudocount) / (n + pseudocount*G)
// for every group under the current assignment.
func (o *Optimiser) Proportions(pseudocount float64) []float64 {
	return proportions(o.assignment, len(o.groups), pseudocount)
}

// groupJob is everything a fitting task needs; it does not share
// memory with the optimiser.
type groupJob struct {
	group int
	loci  []int
	tree  string
	seeds []Parameters
}

type groupFit struct {
	tree       string
	likelihood float64
	params     []Parameters
}

// MStep fits every group on the pool and waits for all of them.
// Groups without loci are skipped.
func (o *Optimiser) MStep() error {
	if o.assignment == nil {
		return ErrNoAssignment
	}
	log.Infof("M-step (%v) for %d groups", o.schedule, len(o.groups))
	fs := make([]*workpool.Future[groupFit], len(o.groups))
	for g, loci := range o.index {
		if len(loci) == 0 {
			continue
		}
		job := groupJob{group: g, loci: loci}
		if o.haveParams {
			job.tree = o.groups[g].Tree
			job.seeds = make([]Parameters, len(loci))
			for k, l := range loci {
				job.seeds[k] = o.params[l].copy()
			}
		}
		fs[g] = workpool.Submit(o.pool, func(workpool.Spawner) (groupFit, error) {
			return o.fitGroup(job)
		})
	}

	fits := make([]groupFit, len(fs))
	var first error
	for g, f := range fs {
		if f == nil {
			continue
		}
		fit, err := f.Help(o.pool)
		if err != nil && first == nil {
			first = fmt.Errorf("group %d: %v", g, err)
		}
		fits[g] = fit
	}
	if first != nil {
		return first
	}

	o.lnl = 0
	for g, fit := range fits {
		if fs[g] == nil {
			o.groups[g] = Group{Likelihood: 0}
			continue
		}
		o.groups[g] = Group{Tree: fit.tree, Likelihood: fit.likelihood}
		for k, l := range o.index[g] {
			o.params[l] = fit.params[k]
		}
		o.lnl += fit.likelihood
	}
	o.haveParams = true
	o.proportions = o.Proportions(o.pseudocount)
	log.Infof("M-step lnL=%f", o.lnl)
	return nil
}

func (o *Optimiser) fitGroup(job groupJob) (res groupFit, err error) {
	m, err := o.builder.Build(job.loci)
	if err != nil {
		return
	}
	optimizable := o.schedule.parameters()
	for k, p := range job.seeds {
		if err = p.seed(m, k, optimizable); err != nil {
			return
		}
	}
	if job.tree != "" {
		if err = m.SetTree(job.tree); err != nil {
			return
		}
	}
	if err = o.schedule.run(m, o.epsilon); err != nil {
		return
	}
	res.tree = m.Tree()
	res.likelihood = m.Likelihood()
	res.params = make([]Parameters, len(job.loci))
	for k := range job.loci {
		if res.params[k], err = harvest(m, k); err != nil {
			return
		}
	}
	log.Debugf("group %d (%d loci): lnL=%f", job.group, len(job.loci), res.likelihood)
	return
}

// EStep fills the table with log L_ij + log(proportion_j) for every
// locus i and group j and normalizes the rows into posteriors. Loci
// are evaluated in parallel, every task builds its own single-locus
// model. Empty groups get zero posterior.
func (o *Optimiser) EStep() error {
	if o.assignment == nil {
		return ErrNoAssignment
	}
	if !o.haveParams {
		return ErrNoParameters
	}
	ng := len(o.groups)
	logProp := make([]float64, ng)
	trees := make([]string, ng)
	for g := range o.groups {
		logProp[g] = math.Log(o.proportions[g])
		trees[g] = o.groups[g].Tree
	}

	log.Infof("E-step for %d loci", len(o.assignment))
	fs := make([]*workpool.Future[[]float64], len(o.assignment))
	for i := range o.assignment {
		locus := i
		p := o.params[i].copy()
		fs[i] = workpool.Submit(o.pool, func(workpool.Spawner) ([]float64, error) {
			return o.evaluateLocus(locus, p, trees, logProp)
		})
	}
	rows, err := workpool.HelpAll(o.pool, fs)
	if err != nil {
		return err
	}
	for i, row := range rows {
		o.table.SetRow(i, row)
	}
	o.table.NormalizeRows()
	return nil
}

func (o *Optimiser) evaluateLocus(locus int, p Parameters, trees []string, logProp []float64) ([]float64, error) {
	m, err := o.builder.Build([]int{locus})
	if err != nil {
		return nil, err
	}
	if err := p.seed(m, 0, false); err != nil {
		return nil, fmt.Errorf("locus %d: %v", locus, err)
	}
	row := make([]float64, len(trees))
	for g, t := range trees {
		if t == "" {
			row[g] = math.Inf(-1)
			continue
		}
		if err := m.SetTree(t); err != nil {
			return nil, fmt.Errorf("locus %d, group %d: %v", locus, g, err)
		}
		row[g] = m.Likelihood() + logProp[g]
	}
	return row, nil
}

// CStep reassigns loci from the posterior table with the configured
// classifier. The new assignment is relabeled in restricted growth
// order and group trees follow their loci. It reports whether any
// locus changed group.
func (o *Optimiser) CStep() (bool, error) {
	if o.assignment == nil {
		return false, ErrNoAssignment
	}
	raw := o.classifier.classify(o.table, o.assignment, o.rng, o.step)
	o.step++

	a, labels := relabel(raw)
	groups := make([]Group, len(labels))
	for old, nw := range labels {
		groups[nw] = o.groups[old]
	}
	changed := !samePartition(o.assignment, a)
	if changed {
		log.Infof("C-step (%v): assignment changed", o.classifier)
	} else {
		log.Infof("C-step (%v): assignment unchanged", o.classifier)
	}
	o.setAssignment(a, groups)
	return changed, nil
}

// samePartition reports if two assignments group loci identically.
func samePartition(a, b []int) bool {
	ra, rb := RestrictedGrowth(a), RestrictedGrowth(b)
	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}
	return len(ra) == len(rb)
}

// Iterate performs MStep, EStep and CStep and reports whether the
// assignment changed.
func (o *Optimiser) Iterate() (bool, error) {
	if err := o.MStep(); err != nil {
		return false, err
	}
	if err := o.EStep(); err != nil {
		return false, err
	}
	return o.CStep()
}

// Likelihood returns the sum of the group log-likelihoods of the last
// MStep.
func (o *Optimiser) Likelihood() float64 {
	return o.lnl
}

// Assignment returns a copy of the current assignment.
func (o *Optimiser) Assignment() []int {
	return append([]int(nil), o.assignment...)
}

// NGroups returns the number of groups.
func (o *Optimiser) NGroups() int {
	return len(o.groups)
}

// Groups returns a copy of the group records.
func (o *Optimiser) Groups() []Group {
	return append([]Group(nil), o.groups...)
}

// Parameters returns a copy of the per-locus parameters.
func (o *Optimiser) Parameters() []Parameters {
	res := make([]Parameters, len(o.params))
	for i, p := range o.params {
		res[i] = p.copy()
	}
	return res
}

// CurrentProportions returns the proportions of the last MStep.
func (o *Optimiser) CurrentProportions() []float64 {
	return append([]float64(nil), o.proportions...)
}

// Table returns the posterior table of the last EStep. The table is
// cleared by CStep.
func (o *Optimiser) Table() *table.Table {
	return o.table
}
