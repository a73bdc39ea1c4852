// internal/metrics/metrics.go

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters exposed on /metrics.
type Metrics struct {
	ReadingsProcessed prometheus.Counter
	ReadingsRejected  prometheus.Counter
	AlertsRaised      *prometheus.CounterVec
	AlertsResolved    prometheus.Counter
	Notifications     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ReadingsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitalwatch_readings_processed_total",
			Help: "Vital-sign readings accepted and evaluated.",
		}),
		ReadingsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitalwatch_readings_rejected_total",
			Help: "Vital-sign readings rejected by validation.",
		}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalwatch_alerts_raised_total",
			Help: "Alerts raised, by severity.",
		}, []string{"severity"}),
		AlertsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitalwatch_alerts_resolved_total",
			Help: "Alerts transitioned to resolved.",
		}),
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalwatch_notifications_total",
			Help: "Fan-out deliveries, by outcome.",
		}, []string{"outcome"}),
	}
}
