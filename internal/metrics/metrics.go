// Package metrics collects and exposes Prometheus metrics for session, navigation, and sign-in activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the session store, navigation coordinators, and sign-in flow record through.
type Recorder interface {
	RecordSessionTransition(state string)
	RecordNavigation(target string)
	RecordNavigationSuppressed(reason string)
	RecordSignInResult(result string)
}

// Suppression reasons
const (
	ReasonInitializing = "initializing"
	ReasonNavigated    = "already_navigated"
	ReasonClosed       = "closed"
)

// Collector is the Prometheus [Recorder].
type Collector struct {
	transitions *prometheus.CounterVec
	navigations *prometheus.CounterVec
	suppressed  *prometheus.CounterVec
	signIns     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capsule_session_transitions_total",
			Help: "Session states published by the session store.",
		}, []string{"state"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capsule_navigations_total",
			Help: "Navigations performed by surface coordinators.",
		}, []string{"target"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capsule_navigation_suppressed_total",
			Help: "Session deliveries that did not navigate, by reason.",
		}, []string{"reason"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capsule_signin_results_total",
			Help: "Terminal results of explicit sign-in attempts.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.transitions, c.navigations, c.suppressed, c.signIns)
	return c
}

// RecordSessionTransition counts a published session state.
func (c *Collector) RecordSessionTransition(state string) {
	c.transitions.WithLabelValues(state).Inc()
}

// RecordNavigation counts a performed navigation.
func (c *Collector) RecordNavigation(target string) {
	c.navigations.WithLabelValues(target).Inc()
}

// RecordNavigationSuppressed counts a delivery or attempt that did not navigate.
func (c *Collector) RecordNavigationSuppressed(reason string) {
	c.suppressed.WithLabelValues(reason).Inc()
}

// RecordSignInResult counts a sign-in result ("success" or an error kind).
func (c *Collector) RecordSignInResult(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSessionTransition(string)    {}
func (Nop) RecordNavigation(string)           {}
func (Nop) RecordNavigationSuppressed(string) {}
func (Nop) RecordSignInResult(string)         {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
