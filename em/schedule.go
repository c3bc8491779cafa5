package em

import (
	"fmt"
	"strings"
)

// Schedule selects what the M-step optimizes for every group.
type Schedule interface {
	fmt.Stringer
	// parameters reports whether model parameters are optimized,
	// i.e. if seeded parameters are optimizable.
	parameters() bool
	run(m Model, epsilon float64) error
}

var (
	// BranchLengths optimizes branch lengths on a fixed topology.
	BranchLengths Schedule = branchLengths{}
	// ModelParameters optimizes branch lengths and model
	// parameters on a fixed topology.
	ModelParameters Schedule = modelParameters{}
	// TopologySearch searches the topology keeping model
	// parameters fixed.
	TopologySearch Schedule = topologySearch{}
	// FullSearch searches the topology and optimizes model
	// parameters.
	FullSearch Schedule = fullSearch{}
)

// Schedules lists all the schedules.
var Schedules = []Schedule{BranchLengths, ModelParameters, TopologySearch, FullSearch}

// ParseSchedule returns the schedule with the given name.
func ParseSchedule(name string) (Schedule, error) {
	for _, s := range Schedules {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown schedule: %s", name)
}

type branchLengths struct{}

func (branchLengths) String() string   { return "brlen" }
func (branchLengths) parameters() bool { return false }
func (branchLengths) run(m Model, epsilon float64) error {
	return m.Fit(FitOptions{BranchLengths: true, Epsilon: epsilon})
}

type modelParameters struct{}

func (modelParameters) String() string   { return "param" }
func (modelParameters) parameters() bool { return true }
func (modelParameters) run(m Model, epsilon float64) error {
	return m.Fit(FitOptions{
		Rates:         true,
		Frequencies:   true,
		Alpha:         true,
		BranchLengths: true,
		Epsilon:       epsilon,
	})
}

type topologySearch struct{}

func (topologySearch) String() string   { return "tree" }
func (topologySearch) parameters() bool { return false }
func (topologySearch) run(m Model, epsilon float64) error {
	return m.SearchTopology(false)
}

type fullSearch struct{}

func (fullSearch) String() string   { return "full" }
func (fullSearch) parameters() bool { return true }
func (fullSearch) run(m Model, epsilon float64) error {
	return m.SearchTopology(true)
}
