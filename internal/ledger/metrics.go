package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	recorded prometheus.Counter
	deleted  prometheus.Counter
	errors   *prometheus.CounterVec
	lockWait prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "transactions_recorded_total",
			Help:      "Transactions applied to the balance store.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "transactions_deleted_total",
			Help:      "Transactions reversed and tombstoned.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "ledger_errors_total",
			Help:      "Failed ledger operations by operation and error class.",
		}, []string{"op", "class"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splitledger",
			Name:      "group_lock_wait_seconds",
			Help:      "Time spent waiting for a group's write lock.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.recorded, m.deleted, m.errors, m.lockWait)
	}
	return m
}

func (m *Metrics) observeError(op string, err error) {
	if err != nil {
		m.errors.WithLabelValues(op, ErrorClass(err)).Inc()
	}
}

func (m *Metrics) observeLockWait(d time.Duration) {
	m.lockWait.Observe(d.Seconds())
}
