package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shortener_link_cache_lookups_total",
		Help: "Link cache lookups by result (hit or miss)",
	},
	[]string{"result"},
)
