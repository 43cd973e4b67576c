package service

import (
	"context"
	"errors"
	"strings"

	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/requestcontext"
)

// CreateOrganization creates an organization with the caller as its first
// admin. Legal outcomes beyond success, as domain error codes:
//   - disabled: system settings forbid self-service creation
//   - limit_exceeded: the caller already belongs to the configured maximum
//     number of organizations
//   - bad_request: name length out of bounds
func (s *Service) CreateOrganization(ctx context.Context, actor id.UserID, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load system settings")
	}
	if !settings.UserCanCreateOrg {
		return nil, dErrors.New(dErrors.CodeDisabled, "organization creation is disabled")
	}

	count, err := s.memberships.CountForUser(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count memberships")
	}
	if count >= settings.OrganizationLimit {
		return nil, dErrors.New(dErrors.CodeLimitExceeded, "organization limit reached")
	}

	now := requestcontext.Now(ctx)
	org, err := models.NewOrganization(name, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orgs.Create(txCtx, org); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
		}
		membership := &models.Membership{
			OrgID:     org.ID,
			UserID:    actor,
			Role:      id.RoleAdmin,
			CreatedAt: now,
		}
		if err := s.memberships.Add(txCtx, membership); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add creator membership")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementOrganizationsCreated()
	}
	s.logger.InfoContext(ctx, "organization created",
		"org_id", org.ID,
		"user_id", actor.String(),
	)
	return org, nil
}

// GetOrganization returns an organization the caller belongs to.
func (s *Service) GetOrganization(ctx context.Context, actor id.UserID, orgID id.OrgID) (*models.Organization, error) {
	if _, err := s.requireMember(ctx, orgID, actor); err != nil {
		return nil, err
	}
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org, nil
}

// RenameOrganization updates the organization name. Admin only. Legal
// outcomes: forbidden (not admin), not_found, bad_request (name length).
func (s *Service) RenameOrganization(ctx context.Context, actor id.UserID, orgID id.OrgID, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := models.ValidateName(newName); err != nil {
		return err
	}
	if _, err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return err
	}

	if err := s.orgs.Rename(ctx, orgID, newName); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to rename organization")
	}
	return nil
}

// OrganizationsForUser lists the caller's memberships joined with their
// organizations. Clients call this once at session start to seed their
// organization switcher.
func (s *Service) OrganizationsForUser(ctx context.Context, actor id.UserID) ([]models.UserOrganization, error) {
	memberships, err := s.memberships.ListForUser(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}

	result := make([]models.UserOrganization, 0, len(memberships))
	for _, m := range memberships {
		org, err := s.orgs.FindByID(ctx, m.OrgID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Membership pointing at a deleted organization; skip rather
				// than fail the whole listing.
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
		}
		result = append(result, models.UserOrganization{Membership: m, Organization: *org})
	}
	return result, nil
}
