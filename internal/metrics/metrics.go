package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the dispatcher's domain metrics. One instance is
// created at startup and threaded through the services.
type Registry struct {
	MessagesSent        *prometheus.CounterVec
	MessagesFailed      *prometheus.CounterVec
	DestinationsSkipped *prometheus.CounterVec
	AdmissionRejections *prometheus.CounterVec
	DispatchDuration    prometheus.Histogram
	LifecycleEvents     *prometheus.CounterVec
}

// NewRegistry registers the dispatcher metrics on a prometheus
// registerer. Pass prometheus.DefaultRegisterer in production and a
// fresh registry in tests.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outreach",
				Subsystem: "dispatch",
				Name:      "messages_sent_total",
				Help:      "Messages accepted by the vendor gateway",
			},
			[]string{"campaign"},
		),
		MessagesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outreach",
				Subsystem: "dispatch",
				Name:      "messages_failed_total",
				Help:      "Messages the vendor gateway rejected after retries",
			},
			[]string{"campaign"},
		),
		DestinationsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outreach",
				Subsystem: "dispatch",
				Name:      "destinations_skipped_total",
				Help:      "Destinations excluded before sending, by reason",
			},
			[]string{"campaign", "reason"},
		),
		AdmissionRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outreach",
				Subsystem: "admission",
				Name:      "rejections_total",
				Help:      "Dispatch calls rejected by the admission controller",
			},
			[]string{"campaign", "reason"},
		),
		DispatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "outreach",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "End-to-end dispatch call duration",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		LifecycleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outreach",
				Subsystem: "lifecycle",
				Name:      "events_total",
				Help:      "Lifecycle events applied, by event type and resulting stage",
			},
			[]string{"event", "stage"},
		),
	}
}
