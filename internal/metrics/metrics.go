// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "simwallet"

var (
	// Derivations counts address derivations by domain tag and outcome.
	Derivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "derivations_total",
		Help:      "Derived address computations by domain and result.",
	}, []string{"domain", "result"})

	// ExhaustedKeyspace counts derivations that found no valid bump.
	ExhaustedKeyspace = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exhausted_keyspace_total",
		Help:      "Derivations that exhausted the bump search space.",
	}, []string{"domain"})

	// AliasReservations counts reserve/release attempts by outcome.
	AliasReservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alias_operations_total",
		Help:      "Alias reserve and release operations by outcome.",
	}, []string{"operation", "result"})

	// SaltRotations counts successful salt rotations.
	SaltRotations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "salt_rotations_total",
		Help:      "Successful salt rotations.",
	})

	// PINRejections counts PIN policy violations by policy and rule.
	PINRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pin_policy_rejections_total",
		Help:      "PINs rejected by the strength policy.",
	}, []string{"policy", "rule"})

	// HTTPRequests counts served requests by route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// LoginThrottled counts login attempts refused by the rate limiter.
	LoginThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_throttled_total",
		Help:      "Login attempts rejected by the rate limiter.",
	})
)
