package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RosterMovesTotal counts roster moves by source and outcome.
	RosterMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_moves_total",
			Help: "Roster moves attempted, by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	RosterMoveLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roster_move_duration_seconds",
			Help:    "Latency of a roster move including the team lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	WaiverClaimsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waiver_claims_processed_total",
			Help: "Waiver claims resolved by the batch processor",
		},
		[]string{"status"},
	)

	WaiverRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waiver_runs_total",
			Help: "Waiver batch runs, by result",
		},
		[]string{"result"},
	)

	WaiverRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waiver_run_duration_seconds",
			Help:    "Duration of waiver batch runs that held the league lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotRowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_rows_written_total",
			Help: "Daily snapshot rows written, by operation",
		},
		[]string{"operation"},
	)

	// SnapshotPolicyViolationsTotal counts attempted writes to a locked day.
	SnapshotPolicyViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_policy_violations_total",
			Help: "Attempted writes to locked snapshot days",
		},
	)

	SnapshotDaysRepairedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_days_repaired_total",
			Help: "Missing snapshot days filled by the repair sweep",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_events_published_total",
			Help: "Roster change events, by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Internal jobs handed to the job queue, by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_cache_lookups_total",
			Help: "Reference data cache lookups, by key namespace and hit or miss",
		},
		[]string{"namespace", "result"},
	)

	// HTTPRequestDuration is labelled by route pattern, never by raw path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	CircuitStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker transitions per dependency",
		},
		[]string{"dependency", "to"},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
