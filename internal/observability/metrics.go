package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alarmdisplay"

// Metrics holds the Prometheus counters, histograms, and gauges for the alarm pipeline.
type Metrics struct {
	PayloadsReceived *prometheus.CounterVec // labels: source={pager,xml,json}
	ParseErrors      *prometheus.CounterVec // labels: source
	PipelineRunning  prometheus.Gauge

	// Incident metrics.
	IncidentsStarted   prometheus.Counter
	IncidentsMerged    prometheus.Counter
	MergeConflicts     *prometheus.CounterVec // labels: field
	ProcessingDuration prometheus.Histogram

	// Sink and transport metrics.
	SinkErrors         *prometheus.CounterVec // labels: sink
	TransportConnected *prometheus.GaugeVec   // labels: transport={serial,udp,imap,websocket}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method=forward, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method=forward, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method=forward
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PayloadsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_received_total",
			Help:      "Raw payloads received by source kind.",
		}, []string{"source"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Payloads discarded because they could not be parsed.",
		}, []string{"source"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		IncidentsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_started_total",
			Help:      "Payloads that started a new incident timeline.",
		}),
		IncidentsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_merged_total",
			Help:      "Payloads merged into the active incident.",
		}),
		MergeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_conflicts_total",
			Help:      "Fields where a merged payload disagreed with the active incident.",
		}, []string{"field"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Duration from payload extraction until all sinks returned.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed sink deliveries by sink.",
		}, []string{"sink"}),
		TransportConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_connected",
			Help:      "1 while a transport is connected, 0 otherwise.",
		}, []string{"transport"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.PayloadsReceived,
		m.ParseErrors,
		m.PipelineRunning,
		m.IncidentsStarted,
		m.IncidentsMerged,
		m.MergeConflicts,
		m.ProcessingDuration,
		m.SinkErrors,
		m.TransportConnected,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PayloadsReceived:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "payloads_received_total"}, []string{"source"}),
		ParseErrors:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "parse_errors_total"}, []string{"source"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		IncidentsStarted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "incidents_started_total"}),
		IncidentsMerged:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "incidents_merged_total"}),
		MergeConflicts:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "merge_conflicts_total"}, []string{"field"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "processing_duration_seconds"}),
		SinkErrors:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sink_errors_total"}, []string{"sink"}),
		TransportConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "transport_connected"}, []string{"transport"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"method", "outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}, []string{"method"}),
		GeocodeEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
	}
}
