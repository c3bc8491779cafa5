package main

import "github.com/phylem/emtree/em"

// RunSummary is storing emtree run summary information.
type RunSummary struct {
	// Version stores emtree version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Run is the unique run identifier.
	Run string `json:"run"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Time is the computations time in seconds.
	TotalTime float64 `json:"time"`

	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`
	// Likelihood is the sum of the group log-likelihoods.
	Likelihood float64 `json:"lnL"`
	// Trace is the likelihood after every iteration.
	Trace []float64 `json:"trace"`

	// Loci are the partition names.
	Loci        []string        `json:"loci"`
	Assignment  []int           `json:"assignment"`
	Groups      []em.Group      `json:"groups"`
	Proportions []float64       `json:"proportions"`
	Parameters  []em.Parameters `json:"parameters"`
	// Posterior is the probability of every group for every locus.
	Posterior [][]float64 `json:"posterior,omitempty"`
}
