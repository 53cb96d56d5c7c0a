package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "commevents", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "commevents", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "commevents", Name: "registrations_total", Help: "Event registration attempts by outcome."},
		[]string{"outcome"},
	)
	// AttendingSyncFailures counts registrations whose user-side attending list update failed
	// after the event-side write committed.
	AttendingSyncFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "commevents", Name: "attending_sync_failures_total", Help: "Best-effort attending-list updates that failed."},
	)
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "commevents", Name: "calendar_token_refresh_total", Help: "Google access token refreshes by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Registrations)
	reg.MustRegister(AttendingSyncFailures)
	reg.MustRegister(TokenRefreshes)
}
