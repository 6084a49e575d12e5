package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_challenges_issued_total",
		Help: "The total number of challenges issued",
	})

	challengesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_challenges_consumed_total",
		Help: "The total number of attempts to consume an issued challenge, by result",
	}, []string{"result"})

	challengesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_challenges_swept_total",
		Help: "The total number of expired challenges evicted by the sweeper",
	})
)
