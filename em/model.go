package em

// FitOptions selects which parameters Model.Fit optimizes.
type FitOptions struct {
	Rates         bool
	Frequencies   bool
	Alpha         bool
	BranchLengths bool
	// Epsilon is the log-likelihood improvement at or below which
	// fitting stops.
	Epsilon float64
}

// Model is a phylogenetic likelihood model over one or more
// partitions sharing a tree. An instance must not be used by two
// goroutines at the same time; distinct instances are independent.
type Model interface {
	// Likelihood returns the log-likelihood.
	Likelihood() float64
	// Fit optimizes the selected parameters by coordinate
	// ascent. A decrease of the likelihood stops the fit and is
	// not an error.
	Fit(opts FitOptions) error
	// SearchTopology performs a heuristic tree search, optionally
	// refitting model parameters.
	SearchTopology(optimizeModel bool) error

	// Tree returns the tree in the Newick format.
	Tree() string
	// SetTree sets the tree from a Newick string.
	SetTree(newick string) error

	NPartitions() int
	// PartitionLength returns the number of sites in partition p.
	PartitionLength(p int) (int, error)
	// PartitionLikelihood returns the log-likelihood of partition p.
	PartitionLikelihood(p int) (float64, error)

	Alpha(p int) (float64, error)
	SetAlpha(p int, alpha float64, optimizable bool) error
	Frequencies(p int) ([]float64, error)
	SetFrequencies(p int, freqs []float64, optimizable bool) error
	Rates(p int) ([]float64, error)
	SetRates(p int, rates []float64, optimizable bool) error
}

// ModelBuilder creates models over subsets of loci. Build is called
// concurrently and must be safe for that.
type ModelBuilder interface {
	// NLoci returns the total number of loci.
	NLoci() int
	// Build returns a model with one partition per locus, in the
	// order given.
	Build(loci []int) (Model, error)
}

// Parameters are the fitted model parameters of a locus.
type Parameters struct {
	Alpha       float64   `json:"alpha"`
	Frequencies []float64 `json:"frequencies"`
	Rates       []float64 `json:"rates"`
	Likelihood  float64   `json:"likelihood"`
}

func (p Parameters) copy() Parameters {
	p.Frequencies = append([]float64(nil), p.Frequencies...)
	p.Rates = append([]float64(nil), p.Rates...)
	return p
}

// Group is the fitted state of one group of loci.
type Group struct {
	Tree       string  `json:"tree"`
	Likelihood float64 `json:"likelihood"`
}

// seed loads saved parameters into partition slot k of m.
func (p Parameters) seed(m Model, k int, optimizable bool) error {
	if err := m.SetAlpha(k, p.Alpha, optimizable); err != nil {
		return err
	}
	if err := m.SetFrequencies(k, p.Frequencies, optimizable); err != nil {
		return err
	}
	return m.SetRates(k, p.Rates, optimizable)
}

// harvest reads the parameters of partition slot k of m.
func harvest(m Model, k int) (p Parameters, err error) {
	if p.Alpha, err = m.Alpha(k); err != nil {
		return
	}
	if p.Frequencies, err = m.Frequencies(k); err != nil {
		return
	}
	if p.Rates, err = m.Rates(k); err != nil {
		return
	}
	p.Likelihood, err = m.PartitionLikelihood(k)
	return
}
