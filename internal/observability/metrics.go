package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "iftar_locator"

// Metrics holds the Prometheus counters and histograms for location resolution.
type Metrics struct {
	// Geocoding provider metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider={photon,nominatim}, outcome={success,error,empty}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}

	// Resolution flow metrics.
	CandidatesDropped prometheus.Counter
	SearchesIssued    prometheus.Counter
	SearchesDeferred  prometheus.Counter
	Resolutions       *prometheus.CounterVec // labels: mode={search,pin,gps}, source={provider,fallback}
	DeviceErrors      *prometheus.CounterVec // labels: kind
	StaleResponses    *prometheus.CounterVec // labels: flow={search,resolve}

	// Confirmation publishing.
	Confirmations        *prometheus.CounterVec // labels: mode
	ConfirmationsDropped prometheus.Counter
	LocationsPublished   prometheus.Counter
	PublishErrors        prometheus.Counter
	PublishBatchSize     prometheus.Histogram
	PublisherRunning     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		CandidatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_dropped_total",
			Help:      "Provider results discarded for invalid coordinates.",
		}),
		SearchesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_issued_total",
			Help:      "Debounced searches that reached the provider.",
		}),
		SearchesDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_deferred_total",
			Help:      "Pending searches cancelled by a newer keystroke.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Confirmed locations by input mode and address source.",
		}, []string{"mode", "source"}),
		DeviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Device location failures by kind.",
		}, []string{"kind"}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request superseded them.",
		}, []string{"flow"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Locations confirmed by the host form, by input mode.",
		}, []string{"mode"}),
		ConfirmationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_dropped_total",
			Help:      "Confirmed locations that were never written to the event topic.",
		}),
		LocationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_published_total",
			Help:      "Confirmed locations written to the event topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed writes to the event topic.",
		}),
		PublishBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_batch_size",
			Help:      "Number of confirmed locations per write.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		PublisherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publisher_running",
			Help:      "Whether the confirmation publisher loop is running (1 = running, 0 = stopped).",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.GeocodeCache,
		m.CandidatesDropped,
		m.SearchesIssued,
		m.SearchesDeferred,
		m.Resolutions,
		m.DeviceErrors,
		m.StaleResponses,
		m.Confirmations,
		m.ConfirmationsDropped,
		m.LocationsPublished,
		m.PublishErrors,
		m.PublishBatchSize,
		m.PublisherRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
