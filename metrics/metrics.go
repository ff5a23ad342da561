// Package metrics provides Prometheus metrics for the token lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recrutech_auth"

var (
	// TokensIssuedTotal counts tokens signed, by kind (access or refresh).
	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "issued_total",
			Help:      "Total number of tokens issued",
		},
		[]string{"kind"},
	)

	// RotationsTotal counts refresh token rotations by outcome.
	RotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "rotations_total",
			Help:      "Total number of refresh token rotations by result",
		},
		[]string{"result"},
	)

	// RevocationsTotal counts refresh tokens flipped to revoked outside rotation.
	RevocationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "revocations_total",
			Help:      "Total number of refresh tokens revoked by logout",
		},
	)

	// LedgerSweptTotal counts expired ledger rows purged by the sweeper.
	LedgerSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "swept_total",
			Help:      "Total number of expired refresh token records purged",
		},
	)

	// ThrottleRejectionsTotal counts requests rejected by the throttle, by
	// authentication entry point.
	ThrottleRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected with 429",
		},
		[]string{"entry_point"},
	)

	// ThrottleTrackedClientsGauge tracks the number of client counters held in memory.
	ThrottleTrackedClientsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "tracked_clients",
			Help:      "Number of client counters currently tracked",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TokensIssuedTotal,
		RotationsTotal,
		RevocationsTotal,
		LedgerSweptTotal,
		ThrottleRejectionsTotal,
		ThrottleTrackedClientsGauge,
	)
}

// Rotation result labels.
const (
	RotationRotated = "rotated"
	RotationRevoked = "revoked"
	RotationExpired = "expired"
	RotationInvalid = "invalid"
	RotationError   = "error"
)

// IncrementTokensIssued records one issued token of the given kind.
func IncrementTokensIssued(kind string) {
	TokensIssuedTotal.WithLabelValues(kind).Inc()
}

// IncrementRotation records a rotation outcome.
func IncrementRotation(result string) {
	RotationsTotal.WithLabelValues(result).Inc()
}

// AddRevocations records n refresh tokens revoked by logout.
func AddRevocations(n int) {
	RevocationsTotal.Add(float64(n))
}

// AddLedgerSwept records n purged ledger rows.
func AddLedgerSwept(n int) {
	LedgerSweptTotal.Add(float64(n))
}

// IncrementThrottleRejection records a 429 for an entry point.
func IncrementThrottleRejection(entryPoint string) {
	ThrottleRejectionsTotal.WithLabelValues(entryPoint).Inc()
}

// SetThrottleTrackedClients records the size of the throttle's counter map.
func SetThrottleTrackedClients(n int) {
	ThrottleTrackedClientsGauge.Set(float64(n))
}
