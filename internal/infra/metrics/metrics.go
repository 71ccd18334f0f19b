// Package metrics provides Prometheus metrics for Lock In.
// Counters, gauges and histograms for sessions, XP, levels, badges,
// quests, account lifecycle, the store and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Sessions ───────────────────────────────────────────────────────────────

// SessionsRecorded counts committed focus sessions.
var SessionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "sessions_recorded_total",
	Help:      "Total focus sessions recorded.",
})

// SessionMinutes tracks focus session length in minutes.
var SessionMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "lockin",
	Name:      "session_minutes",
	Help:      "Focus session duration in minutes.",
	Buckets:   []float64{5, 15, 25, 30, 45, 60, 90, 120, 180, 300, 600},
})

// MoodUpdates counts session mood updates by mood.
var MoodUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "mood_updates_total",
	Help:      "Total session mood updates.",
}, []string{"mood"})

// ─── Progression ────────────────────────────────────────────────────────────

// XPAwarded counts XP granted by source kind.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "xp_awarded_total",
	Help:      "Total XP awarded.",
}, []string{"source"})

// LevelUps counts level-up events.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "level_ups_total",
	Help:      "Total level-up events.",
})

// BadgesUnlocked counts badge unlocks by badge id.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "badges_unlocked_total",
	Help:      "Total badges unlocked.",
}, []string{"badge"})

// ShieldsEarned counts shields earned by milestone.
var ShieldsEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "shields_earned_total",
	Help:      "Total streak shields earned.",
}, []string{"milestone"})

// QuestsCompleted counts completed quests by kind (daily, structured).
var QuestsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "quests_completed_total",
	Help:      "Total quests completed.",
}, []string{"kind"})

// CascadeCapHits counts cascades stopped by the badge pass limit.
var CascadeCapHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "cascade_cap_hits_total",
	Help:      "Reward cascades cut short by the pass limit.",
})

// ─── Accounts ───────────────────────────────────────────────────────────────

// UsersCreated counts created progression documents.
var UsersCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "users_created_total",
	Help:      "Total users created.",
})

// AccountsDeleted counts completed account purges.
var AccountsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "accounts_deleted_total",
	Help:      "Total accounts purged.",
})

// RecordsPurged counts records removed by account purges, by collection.
var RecordsPurged = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "records_purged_total",
	Help:      "Total records removed by account deletion.",
}, []string{"collection"})

// ─── Store ──────────────────────────────────────────────────────────────────

// StoreErrors counts failed store operations by operation.
var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "store_errors_total",
	Help:      "Total store operation failures.",
}, []string{"op"})

// BestEffortFailures counts swallowed failures of secondary operations.
var BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "best_effort_failures_total",
	Help:      "Failures of best-effort operations that were logged and skipped.",
}, []string{"op"})

// StoreHealthy is 1 when the last store ping succeeded.
var StoreHealthy = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "lockin",
	Name:      "store_healthy",
	Help:      "1 if the last store health check passed.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by method, route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks API request latency in seconds.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "lockin",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// RateLimited counts requests rejected by the rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lockin",
	Name:      "http_rate_limited_total",
	Help:      "Total requests rejected by rate limiting.",
})
