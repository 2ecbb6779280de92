package funder

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the funder's prometheus instruments. They are local to one
// Funder instance rather than registered against the global default
// registry, so a process hosting more than one funder (tests, multi-tenant
// daemons) does not collide on metric names.
type Metrics struct {
	Registry *prometheus.Registry

	FriendsTotal        prometheus.Gauge
	RequestsForwarded   prometheus.Counter
	RequestsRejected    *prometheus.CounterVec
	ResponsesRelayed    prometheus.Counter
	CancelsRelayed      prometheus.Counter
	CollectsRelayed     prometheus.Counter
	InconsistenciesSeen prometheus.Counter
	OutgoingBatchSize   prometheus.Histogram
}

// NewMetrics builds a fresh, unregistered set of funder metrics and
// registers them against their own private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FriendsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "friends_total",
			Help:      "Number of friends currently registered.",
		}),
		RequestsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "requests_forwarded_total",
			Help:      "RequestSendFunds operations successfully forwarded to a next hop.",
		}),
		RequestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "requests_rejected_total",
			Help:      "RequestSendFunds operations rejected, by reason.",
		}, []string{"reason"}),
		ResponsesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "responses_relayed_total",
			Help:      "ResponseSendFunds operations relayed upstream.",
		}),
		CancelsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "cancels_relayed_total",
			Help:      "CancelSendFunds operations relayed upstream.",
		}),
		CollectsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "collects_relayed_total",
			Help:      "CollectSendFunds operations relayed upstream, earning our fee.",
		}),
		InconsistenciesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "inconsistencies_total",
			Help:      "Token channel inconsistencies detected.",
		}),
		OutgoingBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meshnode",
			Subsystem: "funder",
			Name:      "outgoing_batch_size",
			Help:      "Number of operations included per outgoing MoveToken.",
			Buckets:   prometheus.LinearBuckets(1, 4, 16),
		}),
	}

	m.Registry.MustRegister(
		m.FriendsTotal,
		m.RequestsForwarded,
		m.RequestsRejected,
		m.ResponsesRelayed,
		m.CancelsRelayed,
		m.CollectsRelayed,
		m.InconsistenciesSeen,
		m.OutgoingBatchSize,
	)
	return m
}
