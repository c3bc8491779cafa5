package optimize

// Coordinate maximizes one parameter at a time with Brent's method
// and repeats the rounds until the improvement drops below
// Tolerance.
type Coordinate struct {
	Line      Brent
	Tolerance float64
	Rounds    int
}

// NewCoordinate returns coordinate ascent with default settings.
func NewCoordinate() *Coordinate {
	return &Coordinate{
		Line: Brent{
			Tolerance:      1e-4,
			MaxEvaluations: 50,
			Window:         10,
		},
		Tolerance: 1e-3,
		Rounds:    10,
	}
}

func (c *Coordinate) Maximize(pars FloatParameters, f func() float64) float64 {
	l := f()
	for round := 0; round < c.Rounds; round++ {
		prev := l
		for _, par := range pars {
			l = c.Line.Maximize1(par, f)
		}
		log.Debugf("coordinate round %d: %f", round, l)
		if l-prev < c.Tolerance {
			break
		}
	}
	return l
}
