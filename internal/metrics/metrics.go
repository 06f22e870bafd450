// Package metrics defines and registers the Prometheus collectors of the
// portal client and the development stub backend. It is the single source of
// truth for metric names, labels, and help strings.
//
// Collectors are registered with the default registry on import through
// promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── API client metrics ───────────────────────────────────────────────────────

// ClientRequestsTotal counts backend calls made by the API client.
// Labels:
//   - method: HTTP method (e.g. "GET")
//   - endpoint: route template (e.g. "/therapists/:id")
//   - outcome: "ok", "api_error", "unauthorized", "no_connection", "decode_error"
var ClientRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Total number of backend requests issued by the API client.",
	},
	[]string{"method", "endpoint", "outcome"},
)

// ClientRequestDuration measures the round trip of a single backend call.
// Label:
//   - endpoint: route template
var ClientRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Duration of backend requests from send to decoded response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// ForcedLogoutsTotal counts sessions dropped because the backend answered 401.
var ForcedLogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "forced_logouts_total",
		Help:      "Total number of sessions cleared after an unauthorized response.",
	},
)

// SessionTransitionsTotal counts session store state changes.
// Label:
//   - state: the state entered ("authenticated" or "anonymous")
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Total number of session store state transitions, by target state.",
	},
	[]string{"state"},
)

// SupersededFetchesTotal counts list results discarded because a newer fetch
// had been issued.
// Label:
//   - view: "therapists" or "sessions"
var SupersededFetchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "view",
		Name:      "superseded_fetches_total",
		Help:      "Total number of fetch results discarded as stale.",
	},
	[]string{"view"},
)

// ── Stub backend metrics ─────────────────────────────────────────────────────

// StubLoginsTotal counts login attempts against the stub backend.
// Label:
//   - result: "ok" or "rejected"
var StubLoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stub",
		Name:      "logins_total",
		Help:      "Total number of login attempts handled by the stub backend.",
	},
	[]string{"result"},
)
