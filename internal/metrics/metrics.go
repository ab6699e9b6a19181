package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cost-control metrics, exposed on the HTTP server's /metrics endpoint.
var (
	// GateDecisions counts admission checks by kind and verdict.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_gate_decisions_total",
			Help: "Total number of paid-call admission checks",
		},
		[]string{"kind", "verdict"}, // verdict: allowed/budget_exceeded/kill_switch_active
	)

	// Consumptions counts recorded paid-resource consumptions.
	Consumptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_consumptions_total",
			Help: "Total number of recorded paid-resource consumptions",
		},
		[]string{"kind"},
	)

	// BudgetUsed mirrors today's used count per kind.
	BudgetUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "placesguard_budget_used",
			Help: "Units consumed today per resource kind",
		},
		[]string{"kind"},
	)

	// PersistenceFailures counts store errors by operation and the policy applied.
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_persistence_failures_total",
			Help: "Total number of document store failures",
		},
		[]string{"op", "policy"},
	)

	// VisualUpgrades counts remote-tier upgrade attempts by outcome.
	VisualUpgrades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_visual_upgrades_total",
			Help: "Total number of remote photo upgrade attempts",
		},
		[]string{"outcome"},
	)

	// ProviderRequests counts provider calls by endpoint and status.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_provider_requests_total",
			Help: "Total number of requests sent to the places provider",
		},
		[]string{"endpoint", "status"},
	)

	// ProviderDuration observes provider latency.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "placesguard_provider_request_duration_seconds",
			Help:    "Places provider request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.025, 2, 8), // 25ms to ~3s
		},
		[]string{"endpoint"},
	)

	// KillSwitchActive is 1 while the last read saw the kill switch engaged.
	KillSwitchActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "placesguard_kill_switch_active",
			Help: "Whether the last kill switch read found paid calls disabled",
		},
	)

	// NearbyCache counts nearby cell cache lookups by result.
	NearbyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_nearby_cache_total",
			Help: "Nearby search cell cache lookups",
		},
		[]string{"result"}, // hit/miss/stale
	)

	// SearchSessions counts autocomplete session transitions.
	SearchSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesguard_search_sessions_total",
			Help: "Autocomplete billing session transitions",
		},
		[]string{"event"}, // begin/end/superseded
	)
)
