package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlanDuration records full planning-call durations by algorithm
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Route planning duration in seconds.", Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5}},
		[]string{"algorithm", "feasible"},
	)
	// SequencerNodes counts branch-and-bound nodes by outcome
	SequencerNodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sequencer_nodes_total", Help: "Sequencer search nodes by outcome."},
		[]string{"outcome"}, // explored, pruned
	)
	// AvailabilityDecisions counts availability outcomes by tier
	AvailabilityDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "availability_decisions_total", Help: "Availability decisions by route type."},
		[]string{"route_type"},
	)
	// CorridorConflicts counts optimistic append conflicts
	CorridorConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "corridor_append_conflicts_total", Help: "Optimistic version conflicts on corridor append."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(SequencerNodes)
		Registry.MustRegister(AvailabilityDecisions)
		Registry.MustRegister(CorridorConflicts)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
