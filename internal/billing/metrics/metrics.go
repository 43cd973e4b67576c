// Package metrics holds Prometheus metrics for the billing domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PortalSessionsCreated prometheus.Counter
	CustomersReactivated  prometheus.Counter
	CustomersCreated      prometheus.Counter
	StatusCacheHits       prometheus.Counter
	StatusCacheMisses     prometheus.Counter
}

// New creates and registers the billing metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		PortalSessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_billing_portal_sessions_created_total",
			Help: "Total number of customer portal sessions created",
		}),
		CustomersReactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_billing_customers_reactivated_total",
			Help: "Total number of archived provider customers reactivated",
		}),
		CustomersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_billing_customers_created_total",
			Help: "Total number of provider customers created from the portal flow",
		}),
		StatusCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_billing_status_cache_hits_total",
			Help: "Subscription status lookups served from cache",
		}),
		StatusCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_billing_status_cache_misses_total",
			Help: "Subscription status lookups that read the database",
		}),
	}
}

func (m *Metrics) IncrementPortalSessions() {
	m.PortalSessionsCreated.Inc()
}

func (m *Metrics) IncrementCustomersReactivated() {
	m.CustomersReactivated.Inc()
}

func (m *Metrics) IncrementCustomersCreated() {
	m.CustomersCreated.Inc()
}

func (m *Metrics) IncrementStatusCacheHit() {
	m.StatusCacheHits.Inc()
}

func (m *Metrics) IncrementStatusCacheMiss() {
	m.StatusCacheMisses.Inc()
}
