package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_ratelimit_decisions_total",
		Help: "The total number of rate limit decisions, by outcome",
	}, []string{"outcome"})

	recordsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_ratelimit_records_swept_total",
		Help: "The total number of idle rate limit records evicted",
	})
)

func observe(d Decision) Decision {
	if d.Allowed {
		decisions.WithLabelValues("allowed").Inc()
	} else {
		decisions.WithLabelValues(string(d.Reason)).Inc()
	}

	return d
}

// Observe records a decision made by a backend outside this package.
func Observe(d Decision) Decision {
	return observe(d)
}
