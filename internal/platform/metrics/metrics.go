package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session-sharing protocol.
// Tracks login fan-out, cascade logouts, and the broker-facing facade.
type Metrics struct {
	Logins            prometheus.Counter
	CascadeLogouts    prometheus.Counter
	TokensIssued      prometheus.Counter
	SignatureFailures prometheus.Counter
	FacadeDuration    *prometheus.HistogramVec
}

// New creates a Metrics instance with all protocol metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "easysso_logins_total",
			Help: "Total number of server-side logins",
		}),
		CascadeLogouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "easysso_cascade_logouts_total",
			Help: "Total number of cascade logout operations",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "easysso_broker_tokens_issued_total",
			Help: "Total number of broker tokens minted",
		}),
		SignatureFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "easysso_signature_failures_total",
			Help: "Total number of rejected checksums on the facade",
		}),
		FacadeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "easysso_facade_duration_seconds",
			Help:    "Duration of broker-facing facade commands",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"command"}),
	}
}

// ObserveFacade records the duration of one facade command.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveFacade(command string, start time.Time) {
	m.FacadeDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
