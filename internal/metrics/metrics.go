// Package metrics collects Prometheus metrics for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and the dispatcher report to.
type Recorder interface {
	ActionHandled(kind, outcome string)
	ClaimResult(outcome string)
	PostSynced(outcome string)
	SessionsActive(n int)
}

// Post sync outcomes.
const (
	PostCreated   = "created"
	PostEdited    = "edited"
	PostRecreated = "recreated"
	PostFailed    = "failed"
)

// Collector implements Recorder with Prometheus collectors.
type Collector struct {
	actions  *prometheus.CounterVec
	claims   *prometheus.CounterVec
	posts    *prometheus.CounterVec
	sessions prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_actions_total",
			Help: "Inbound actions handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_claims_total",
			Help: "Claim ledger mutations, by outcome.",
		}, []string{"outcome"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_category_post_syncs_total",
			Help: "Category post synchronizations, by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "market_browse_sessions",
			Help: "Open browse sessions.",
		}),
	}

	reg.MustRegister(c.actions, c.claims, c.posts, c.sessions)
	return c
}

func (c *Collector) ActionHandled(kind, outcome string) {
	c.actions.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) ClaimResult(outcome string) {
	c.claims.WithLabelValues(outcome).Inc()
}

func (c *Collector) PostSynced(outcome string) {
	c.posts.WithLabelValues(outcome).Inc()
}

func (c *Collector) SessionsActive(n int) {
	c.sessions.Set(float64(n))
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ActionHandled(kind, outcome string) {}
func (Nop) ClaimResult(outcome string)         {}
func (Nop) PostSynced(outcome string)          {}
func (Nop) SessionsActive(n int)               {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
