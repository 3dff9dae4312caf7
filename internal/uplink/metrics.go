package uplink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplink_count",
		Help: "The number of handled uplinks (per source).",
	}, []string{"source"})

	uec = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplink_error_count",
		Help: "The number of uplinks that failed to be processed (per task).",
	}, []string{"task"})

	mc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplink_measurement_count",
		Help: "The number of stored measurements (per decoding profile).",
	}, []string{"profile"})
)

func uplinkCounter(source string) prometheus.Counter {
	return uc.With(prometheus.Labels{"source": source})
}

func uplinkErrorCounter(task string) prometheus.Counter {
	return uec.With(prometheus.Labels{"task": task})
}

func measurementCounter(profile string) prometheus.Counter {
	return mc.With(prometheus.Labels{"profile": profile})
}
