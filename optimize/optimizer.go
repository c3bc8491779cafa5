// Package optimize provides maximization of real functions over
// bounded parameters.
package optimize

import (
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("optimize")

// Maximizer changes parameters to maximize f. f is evaluated at the
// current parameter values. On return the parameters hold the best
// point found and its value is returned. A Maximizer only holds
// settings and can be shared between goroutines.
type Maximizer interface {
	Maximize(pars FloatParameters, f func() float64) float64
}
