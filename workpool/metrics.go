package workpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	submitted *prometheus.CounterVec
	executed  prometheus.Counter
	stolen    prometheus.Counter
}

// newMetrics creates pool counters. They are only registered if reg
// is not nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emtree",
			Subsystem: "workpool",
			Name:      "tasks_submitted_total",
			Help:      "Tasks submitted, by destination queue.",
		}, []string{"queue"}),
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emtree",
			Subsystem: "workpool",
			Name:      "tasks_executed_total",
			Help:      "Tasks executed by the workers.",
		}),
		stolen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emtree",
			Subsystem: "workpool",
			Name:      "tasks_stolen_total",
			Help:      "Tasks taken from a peer worker queue.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.submitted, m.executed, m.stolen} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
