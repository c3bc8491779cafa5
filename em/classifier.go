package em

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/phylem/emtree/table"
)

// Classifier turns a posterior table into a new assignment.
type Classifier interface {
	fmt.Stringer
	// classify returns new group labels given the posterior
	// table, the current assignment and the number of previous
	// classification steps.
	classify(t *table.Table, current []int, rng *rand.Rand, step int) []int
}

var (
	// MAP assigns every locus to its most probable group.
	MAP Classifier = mapClassifier{}
	// Impute samples the group of every locus from its posterior.
	Impute Classifier = imputeClassifier{}
)

const (
	// DefaultTemperature is the initial annealing temperature.
	DefaultTemperature = 1.0
	// DefaultCooling is the per-step annealing cooling factor.
	DefaultCooling = 0.9
)

// Anneal proposes moving every locus to a random other group and
// accepts with probability min(1, (p_new/p_old)^(1/T)), where
// T = t0*cooling^step.
func Anneal(t0, cooling float64) Classifier {
	return annealClassifier{t0: t0, cooling: cooling}
}

// ParseClassifier returns the classifier with the given name.
// Annealing uses the default temperature schedule.
func ParseClassifier(name string) (Classifier, error) {
	switch strings.ToLower(name) {
	case "map":
		return MAP, nil
	case "impute":
		return Impute, nil
	case "anneal":
		return Anneal(DefaultTemperature, DefaultCooling), nil
	}
	return nil, fmt.Errorf("unknown classifier: %s", name)
}

type mapClassifier struct{}

func (mapClassifier) String() string { return "map" }

func (mapClassifier) classify(t *table.Table, current []int, rng *rand.Rand, step int) []int {
	res := make([]int, t.Rows())
	for i := range res {
		res[i] = t.ArgMaxRow(i)
	}
	return res
}

type imputeClassifier struct{}

func (imputeClassifier) String() string { return "impute" }

func (imputeClassifier) classify(t *table.Table, current []int, rng *rand.Rand, step int) []int {
	res := make([]int, t.Rows())
	cum := make([]float64, t.Cols())
	for i := range res {
		res[i] = sample(floats.CumSum(cum, t.Row(i)), rng)
	}
	return res
}

// sample draws an index from cumulative weights by inverse CDF.
func sample(cum []float64, rng *rand.Rand) int {
	u := rng.Float64() * cum[len(cum)-1]
	for j, c := range cum {
		if u < c {
			return j
		}
	}
	return len(cum) - 1
}

type annealClassifier struct {
	t0      float64
	cooling float64
}

func (c annealClassifier) String() string {
	return fmt.Sprintf("anneal(t0=%g, cooling=%g)", c.t0, c.cooling)
}

func (c annealClassifier) temperature(step int) float64 {
	return c.t0 * math.Pow(c.cooling, float64(step))
}

func (c annealClassifier) classify(t *table.Table, current []int, rng *rand.Rand, step int) []int {
	res := append([]int(nil), current...)
	ng := t.Cols()
	if ng < 2 {
		return res
	}
	temp := c.temperature(step)
	log.Debugf("annealing temperature %g", temp)
	for i, cur := range current {
		prop := rng.Intn(ng - 1)
		if prop >= cur {
			prop++
		}
		pCur, pProp := t.Get(i, cur), t.Get(i, prop)
		if pCur <= 0 {
			res[i] = prop
			continue
		}
		d := (math.Log(pProp) - math.Log(pCur)) / temp
		if d >= 0 || rng.Float64() < math.Exp(d) {
			res[i] = prop
		}
	}
	return res
}
