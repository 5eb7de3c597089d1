// Package metrics defines and registers the custom Prometheus metrics for the
// account service. It is the single source of truth for metric names, labels
// and help strings.
//
// Metrics are registered with the default registry on package load (promauto),
// so importing the package is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account"

// Outcome label values shared by the counters below.
const (
	OutcomeOK        = "ok"
	OutcomeDenied    = "denied"
	OutcomeNotFound  = "not_found"
	OutcomeExpired   = "expired"
	OutcomeThrottled = "throttled"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// ── User metrics ──────────────────────────────────────────────────────────────

// UserUpdatesTotal counts update attempts.
// Label:
//   - outcome: ok, denied, not_found, invalid or error
var UserUpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_updates_total",
		Help:      "Total number of user update attempts, by outcome.",
	},
	[]string{"outcome"},
)

// ── Password reset metrics ────────────────────────────────────────────────────

// PasswordResetsTotal counts reset workflow calls.
// Labels:
//   - stage: issue, validate or consume
//   - outcome: ok, not_found, expired, throttled, invalid or error
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset operations, by stage and outcome.",
	},
	[]string{"stage", "outcome"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotifyQueueDepth tracks the number of notifications waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var NotifyQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notify_queue_depth",
		Help:      "Current number of reset notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// NotifyDuration measures how long a single notification takes to deliver.
// Label:
//   - result: "sent" or "error"
var NotifyDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notify_duration_seconds",
		Help:      "Duration of reset notification delivery from dequeue to mailer return.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)
