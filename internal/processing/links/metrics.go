package links

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortener_links_created_total",
		Help: "Total number of short links created",
	})

	clicksRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_clicks_recorded_total",
			Help: "Total number of clicks recorded, by pipeline",
		},
		[]string{"mode"},
	)

	allocationCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortener_allocation_collisions_total",
		Help: "Short code candidates rejected because the code was already taken",
	})

	allocationExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortener_allocation_exhausted_total",
		Help: "Create requests that ran out of allocation attempts",
	})
)
