// Package service orchestrates billing: the billing admin assignment, cached
// subscription status reads, and the customer portal flow against the payment
// provider.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"orgkit/internal/billing/metrics"
	"orgkit/internal/billing/models"
	"orgkit/internal/billing/paddle"
	orgmodels "orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
)

// BillingAdminStore persists the per-organization billing admin email.
type BillingAdminStore interface {
	Set(ctx context.Context, orgID id.OrgID, email string) error
	Get(ctx context.Context, orgID id.OrgID) (string, error)
}

// SubscriptionStore reads subscription mirrors maintained by the webhook
// pipeline.
type SubscriptionStore interface {
	FindByOrg(ctx context.Context, orgID id.OrgID) (*models.Subscription, error)
}

// MembershipReader checks organization membership for authorization.
type MembershipReader interface {
	Find(ctx context.Context, orgID id.OrgID, userID id.UserID) (*orgmodels.Membership, error)
}

// Directory resolves emails to user IDs.
type Directory interface {
	UserForEmail(ctx context.Context, email string) (id.UserID, error)
}

// ProviderClient is the slice of the payment provider API the service needs.
type ProviderClient interface {
	ListCustomersByEmail(ctx context.Context, email string, statuses ...string) ([]paddle.Customer, error)
	CreateCustomer(ctx context.Context, email string) (*paddle.Customer, error)
	SetCustomerStatus(ctx context.Context, customerID, status string) (*paddle.Customer, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// StatusCache caches subscription status summaries. Implementations must
// return sentinel.ErrNotFound on miss.
type StatusCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service implements billing operations.
type Service struct {
	admins      BillingAdminStore
	subs        SubscriptionStore
	memberships MembershipReader
	directory   Directory
	provider    ProviderClient

	cache    StatusCache
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStatusCache enables caching of subscription status reads.
func WithStatusCache(cache StatusCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func New(
	admins BillingAdminStore,
	subs SubscriptionStore,
	memberships MembershipReader,
	directory Directory,
	provider ProviderClient,
	opts ...Option,
) *Service {
	s := &Service{
		admins:      admins,
		subs:        subs,
		memberships: memberships,
		directory:   directory,
		provider:    provider,
		cacheTTL:    30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) requireAdmin(ctx context.Context, orgID id.OrgID, actor id.UserID) error {
	m, err := s.memberships.Find(ctx, orgID, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organisation membership not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	if !m.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, orgID id.OrgID, actor id.UserID) error {
	_, err := s.memberships.Find(ctx, orgID, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organisation membership not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return nil
}
