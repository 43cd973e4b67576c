package service

import (
	"context"
	"errors"

	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
)

// UpdateMemberRole changes a member's role. Admin only. The last admin of an
// organization cannot be demoted: demotion would leave the organization
// unmanageable. Legal outcomes: forbidden, not_found,
// invariant_violation (last admin), bad_request (unknown role).
func (s *Service) UpdateMemberRole(ctx context.Context, actor id.UserID, orgID id.OrgID, userID id.UserID, role id.Role) error {
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "unknown organization role")
	}
	if _, err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		member, err := s.memberships.Find(txCtx, orgID, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "member not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
		}

		if member.IsAdmin() && role != id.RoleAdmin {
			admins, err := s.memberships.CountAdmins(txCtx, orgID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
			}
			if admins <= 1 {
				return dErrors.New(dErrors.CodeInvariantViolation, "cannot demote the last admin")
			}
		}

		if err := s.memberships.UpdateRole(txCtx, orgID, userID, role); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update role")
		}
		return nil
	})
}

// RemoveMember removes a user from an organization. Admin only. The last
// admin cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actor id.UserID, orgID id.OrgID, userID id.UserID) error {
	if _, err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		member, err := s.memberships.Find(txCtx, orgID, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "member not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
		}

		if member.IsAdmin() {
			admins, err := s.memberships.CountAdmins(txCtx, orgID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
			}
			if admins <= 1 {
				return dErrors.New(dErrors.CodeInvariantViolation, "cannot remove the last admin")
			}
		}

		if err := s.memberships.Remove(txCtx, orgID, userID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove member")
		}
		return nil
	})
}

// ListMembers returns membership details with member emails. Any member of
// the organization may list.
func (s *Service) ListMembers(ctx context.Context, actor id.UserID, orgID id.OrgID) ([]models.MemberDetail, error) {
	if _, err := s.requireMember(ctx, orgID, actor); err != nil {
		return nil, err
	}

	memberships, err := s.memberships.List(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}

	details := make([]models.MemberDetail, 0, len(memberships))
	for _, m := range memberships {
		email, err := s.directory.EmailForUser(ctx, m.UserID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve member email")
		}
		details = append(details, models.MemberDetail{
			UserID:   m.UserID,
			Role:     m.Role,
			Email:    email,
			JoinedAt: m.CreatedAt,
		})
	}
	return details, nil
}
