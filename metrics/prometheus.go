package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink is a Sink backed by github.com/prometheus/client_golang,
// grounded on the Living-Digital-Fortress example's use of client_golang
// counters and histograms around a dispatch path.
type PrometheusSink struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// NewPrometheusSink builds a Sink and registers its collectors against
// reg. Passing a nil reg registers against prometheus.DefaultRegisterer.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &PrometheusSink{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slirc",
			Subsystem: "event_manager",
			Name:      "handler_dispatch_total",
			Help:      "Total handler invocations, partitioned by event identity and outcome.",
		}, []string{"identity", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slirc",
			Subsystem: "event_manager",
			Name:      "handler_dispatch_duration_seconds",
			Help:      "Handler dispatch latency, partitioned by event identity.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"identity"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slirc",
			Subsystem: "event_manager",
			Name:      "post_queue_depth",
			Help:      "Current number of events posted but not yet claimed by a waiter.",
		}),
	}

	reg.MustRegister(s.dispatches, s.duration, s.queueDepth)
	return s
}

func (s *PrometheusSink) ObserveDispatch(identity string, _ int, duration time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	s.dispatches.WithLabelValues(identity, outcome).Inc()
	s.duration.WithLabelValues(identity).Observe(duration.Seconds())
}

func (s *PrometheusSink) ObserveQueueDepth(depth int) {
	s.queueDepth.Set(float64(depth))
}
