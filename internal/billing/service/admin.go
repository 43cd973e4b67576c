package service

import (
	"context"
	"errors"

	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/requestcontext"
)

// SetBillingAdmin assigns the billing contact for an organization. The actor
// must be an admin, and the email must belong to a user who is themselves an
// admin member of the organization.
func (s *Service) SetBillingAdmin(ctx context.Context, actor id.UserID, orgID id.OrgID, email string) error {
	if err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return err
	}

	candidate, err := s.directory.UserForEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeBadRequest, "email does not belong to an organisation admin")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve email")
	}

	membership, err := s.memberships.Find(ctx, orgID, candidate)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeBadRequest, "email does not belong to an organisation admin")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	if !membership.IsAdmin() {
		return dErrors.New(dErrors.CodeBadRequest, "email does not belong to an organisation admin")
	}

	if err := s.admins.Set(ctx, orgID, email); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store billing admin")
	}

	s.logger.InfoContext(ctx, "billing admin assigned",
		"request_id", requestcontext.RequestID(ctx),
		"organisation_id", orgID,
		"user_id", candidate,
	)
	return nil
}

// BillingAdmin returns the organization's billing contact email. Members only.
func (s *Service) BillingAdmin(ctx context.Context, actor id.UserID, orgID id.OrgID) (string, error) {
	if err := s.requireMember(ctx, orgID, actor); err != nil {
		return "", err
	}

	email, err := s.admins.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "no billing admin configured")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load billing admin")
	}
	return email, nil
}
