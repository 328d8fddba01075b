package calendar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fallbackTotal counts list passes served from placeholder data
	fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_fallback_total",
			Help: "Number of calendar list passes that fell back to placeholder events",
		},
		[]string{"reason"},
	)

	// mutationTotal counts settled mutations by source and final state
	mutationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_mutations_total",
			Help: "Number of calendar mutations by kind, source and final state",
		},
		[]string{"kind", "source", "state"},
	)

	// dragTotal counts drag gestures by outcome
	dragTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_drag_gestures_total",
			Help: "Number of drag gestures by outcome",
		},
		[]string{"outcome"},
	)

	activeDrags = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calendar_active_drag_sessions",
			Help: "Number of drag sessions currently in progress",
		},
	)
)

func observeMutation(m *Mutation) {
	if m == nil {
		return
	}
	mutationTotal.WithLabelValues(string(m.Kind), string(m.Source), string(m.State)).Inc()
}
