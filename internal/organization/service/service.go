package service

import (
	"context"
	"errors"
	"log/slog"

	orgmetrics "orgkit/internal/organization/metrics"
	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/platform/tx"
)

// OrganizationStore persists organizations.
type OrganizationStore interface {
	// Create inserts the organization and assigns its numeric ID.
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	Rename(ctx context.Context, orgID id.OrgID, name string) error
}

// MembershipStore persists user-organization memberships.
type MembershipStore interface {
	Add(ctx context.Context, m *models.Membership) error
	Find(ctx context.Context, orgID id.OrgID, userID id.UserID) (*models.Membership, error)
	List(ctx context.Context, orgID id.OrgID) ([]models.Membership, error)
	ListForUser(ctx context.Context, userID id.UserID) ([]models.Membership, error)
	UpdateRole(ctx context.Context, orgID id.OrgID, userID id.UserID, role id.Role) error
	Remove(ctx context.Context, orgID id.OrgID, userID id.UserID) error
	CountAdmins(ctx context.Context, orgID id.OrgID) (int, error)
	CountForUser(ctx context.Context, userID id.UserID) (int, error)
}

// SettingsStore reads and writes the system settings singleton.
type SettingsStore interface {
	Get(ctx context.Context) (models.SystemSettings, error)
	Update(ctx context.Context, settings models.SystemSettings) error
}

// InviteStore persists per-user invite codes.
type InviteStore interface {
	Create(ctx context.Context, invite *models.InviteCode) error
	FindByUser(ctx context.Context, userID id.UserID) (*models.InviteCode, error)
	FindByCode(ctx context.Context, code string) (*models.InviteCode, error)
	SetEnabled(ctx context.Context, userID id.UserID, enabled bool) error
}

// APIKeyStore persists hashed organization API keys.
type APIKeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	ListForOrg(ctx context.Context, orgID id.OrgID) ([]models.APIKey, error)
	Delete(ctx context.Context, orgID id.OrgID, keyID int64) error
}

// UserDirectory resolves user emails. The auth provider owns users; we only
// read the mirrored profile rows.
type UserDirectory interface {
	EmailForUser(ctx context.Context, userID id.UserID) (string, error)
	UserForEmail(ctx context.Context, email string) (id.UserID, error)
}

// Service orchestrates organization lifecycle, membership, invite codes, and
// API keys.
type Service struct {
	orgs        OrganizationStore
	memberships MembershipStore
	settings    SettingsStore
	invites     InviteStore
	apiKeys     APIKeyStore
	directory   UserDirectory

	logger  *slog.Logger
	metrics *orgmetrics.Metrics
	tx      tx.Runner
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

func WithMetrics(m *orgmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func New(
	orgs OrganizationStore,
	memberships MembershipStore,
	settings SettingsStore,
	invites InviteStore,
	apiKeys APIKeyStore,
	directory UserDirectory,
	opts ...Option,
) *Service {
	s := &Service{
		orgs:        orgs,
		memberships: memberships,
		settings:    settings,
		invites:     invites,
		apiKeys:     apiKeys,
		directory:   directory,
		logger:      slog.Default(),
		tx:          tx.NoopRunner{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireAdmin loads the actor's membership and rejects non-admins.
func (s *Service) requireAdmin(ctx context.Context, orgID id.OrgID, actor id.UserID) (*models.Membership, error) {
	m, err := s.memberships.Find(ctx, orgID, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	if !m.Role.CanManageMembers() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return m, nil
}

// requireMember loads the actor's membership with any role.
func (s *Service) requireMember(ctx context.Context, orgID id.OrgID, actor id.UserID) (*models.Membership, error) {
	m, err := s.memberships.Find(ctx, orgID, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m, nil
}
