package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ConnectionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vessel_connections_total",
			Help: "Total number of connections by role and state",
		},
		[]string{"role", "state"},
	)

	ConnectionsAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_connections_accepted_total",
			Help: "Total number of connections accepted",
		},
	)

	IdleAbortsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_idle_aborts_total",
			Help: "Total number of connections aborted for exceeding the idle timeout",
		},
	)

	// Broadcast metrics
	BroadcastPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_broadcast_passes_total",
			Help: "Total number of broadcast passes started by the control service",
		},
	)

	BroadcastPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vessel_broadcast_pass_duration_seconds",
			Help:    "Time taken to fan a broadcast pass out to all connections",
			Buckets: prometheus.DefBuckets,
		},
	)

	BroadcastSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vessel_broadcast_sends_total",
			Help: "Total number of per-connection sends by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: full|diff, outcome: success|failure
	)

	BroadcastPendingSuperseded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_broadcast_pending_superseded_total",
			Help: "Total number of pending broadcast targets replaced by a newer one before being sent",
		},
	)

	// Generational hash / diff metrics
	GenerationHashDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vessel_generation_hash_duration_seconds",
			Help:    "Time taken to compute a document's generation hash",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiffComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vessel_diff_compute_duration_seconds",
			Help:    "Time taken to compute a structural diff between two document versions",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiffEntriesTotal = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vessel_diff_entries",
			Help:    "Number of entries in a computed diff",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	DiffRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_diff_rejections_total",
			Help: "Total number of ClusterStatusDiff applications rejected for a start-generation mismatch",
		},
	)

	// Cluster-state store metrics
	ClusterStateNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vessel_cluster_state_nodes_total",
			Help: "Number of node contributions currently held in the cluster-state store",
		},
	)

	ClusterStateExpirationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_cluster_state_expirations_total",
			Help: "Total number of node contributions purged for exceeding the expiration threshold",
		},
	)

	// Wire codec metrics
	WireEncodeCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_wire_encode_cache_hits_total",
			Help: "Total number of SerializableArgument encodes served from the identity cache",
		},
	)

	WireChunkedValuesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_wire_chunked_values_total",
			Help: "Total number of argument values that required Big chunking",
		},
	)

	// Agent responder metrics
	AgentClusterStatusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vessel_agent_cluster_status_total",
			Help: "Total number of ClusterStatus/ClusterStatusDiff applications handled by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: full|diff, outcome: applied|rejected
	)

	AgentStateReportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_agent_state_reports_total",
			Help: "Total number of NodeState reports sent by the agent responder",
		},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(ConnectionsAcceptedTotal)
	prometheus.MustRegister(IdleAbortsTotal)
	prometheus.MustRegister(BroadcastPassesTotal)
	prometheus.MustRegister(BroadcastPassDuration)
	prometheus.MustRegister(BroadcastSendsTotal)
	prometheus.MustRegister(BroadcastPendingSuperseded)
	prometheus.MustRegister(GenerationHashDuration)
	prometheus.MustRegister(DiffComputeDuration)
	prometheus.MustRegister(DiffEntriesTotal)
	prometheus.MustRegister(DiffRejectionsTotal)
	prometheus.MustRegister(ClusterStateNodesTotal)
	prometheus.MustRegister(ClusterStateExpirationsTotal)
	prometheus.MustRegister(WireEncodeCacheHitsTotal)
	prometheus.MustRegister(WireChunkedValuesTotal)
	prometheus.MustRegister(AgentClusterStatusTotal)
	prometheus.MustRegister(AgentStateReportsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
