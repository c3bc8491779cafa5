package em

import (
	"fmt"
)

// State is a snapshot of the optimiser which can be saved and
// restored between iterations.
type State struct {
	Assignment     []int        `json:"assignment"`
	Groups         []Group      `json:"groups"`
	Parameters     []Parameters `json:"parameters"`
	HaveParameters bool         `json:"have_parameters"`
	Likelihood     float64      `json:"likelihood"`
	Step           int          `json:"step"`
}

// State returns a snapshot of the optimiser.
func (o *Optimiser) State() *State {
	return &State{
		Assignment:     o.Assignment(),
		Groups:         o.Groups(),
		Parameters:     o.Parameters(),
		HaveParameters: o.haveParams,
		Likelihood:     o.lnl,
		Step:           o.step,
	}
}

// Restore loads a snapshot created by State. The posterior table is
// not part of the snapshot and is zero until the next EStep.
func (o *Optimiser) Restore(s *State) error {
	n := o.builder.NLoci()
	if len(s.Assignment) != n || len(s.Parameters) != n {
		return fmt.Errorf("state has %d loci, expected %d", len(s.Assignment), n)
	}
	if len(s.Groups) != GroupCount(s.Assignment) {
		return fmt.Errorf("state has %d groups, assignment has %d", len(s.Groups), GroupCount(s.Assignment))
	}
	o.setAssignment(append([]int(nil), s.Assignment...), append([]Group(nil), s.Groups...))
	for i, p := range s.Parameters {
		o.params[i] = p.copy()
	}
	o.haveParams = s.HaveParameters
	o.lnl = s.Likelihood
	o.step = s.Step
	return nil
}
