// Package metrics holds Prometheus metrics for the organization domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrganizationsCreated prometheus.Counter
	MembersJoined        prometheus.Counter
}

// New creates and registers the organization metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		OrganizationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_organizations_created_total",
			Help: "Total number of organizations created",
		}),
		MembersJoined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_members_joined_total",
			Help: "Total number of members added to organizations via invite codes",
		}),
	}
}

func (m *Metrics) IncrementOrganizationsCreated() {
	m.OrganizationsCreated.Inc()
}

func (m *Metrics) IncrementMembersJoined() {
	m.MembersJoined.Inc()
}
