package sqlite

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	queries       prometheus.Counter
	udfCalls      *prometheus.CounterVec // by UDF kind, the name up to its unique suffix
	rowsCollected prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jsoniq",
			Subsystem: "frame",
			Name:      "queries_total",
			Help:      "Number of SQL statements run by the frame engine.",
		}),
		udfCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jsoniq",
			Subsystem: "frame",
			Name:      "udf_calls_total",
			Help:      "Number of UDF invocations made by SQL statements.",
		}, []string{"kind"}),
		rowsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jsoniq",
			Subsystem: "frame",
			Name:      "rows_collected_total",
			Help:      "Number of rows materialized into the query process.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	// Engines sharing a registry share their collectors.
	for _, c := range []*prometheus.Counter{&m.queries, &m.rowsCollected} {
		existing, err := register(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = existing.(prometheus.Counter)
	}
	existing, err := register(reg, m.udfCalls)
	if err != nil {
		return nil, err
	}
	m.udfCalls = existing.(*prometheus.CounterVec)
	return m, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}
