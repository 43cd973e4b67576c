package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/requestcontext"
)

const inviteCodeBytes = 8 // 16 hex characters

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// EnsureInviteCode returns the caller's invite code, creating one on first
// use. Codes start enabled.
func (s *Service) EnsureInviteCode(ctx context.Context, actor id.UserID) (*models.InviteCode, error) {
	invite, err := s.invites.FindByUser(ctx, actor)
	if err == nil {
		return invite, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invite code")
	}

	code, err := generateInviteCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate invite code")
	}
	invite = &models.InviteCode{
		UserID:    actor,
		Code:      code,
		Enabled:   true,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		// Concurrent first use: someone else created it; read theirs.
		if errors.Is(err, sentinel.ErrConflict) {
			return s.invites.FindByUser(ctx, actor)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invite code")
	}
	return invite, nil
}

// SetInviteCodeEnabled toggles redemption of the caller's invite code.
func (s *Service) SetInviteCodeEnabled(ctx context.Context, actor id.UserID, enabled bool) error {
	if err := s.invites.SetEnabled(ctx, actor, enabled); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "invite code not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invite code")
	}
	return nil
}

// JoinWithCode adds the caller to an organization using another user's invite
// code. The code owner must be an admin of the target organization. New
// members join as VIEWER. Legal outcomes: not_found (unknown code or the
// owner is not in the organization), disabled (code switched off),
// forbidden (owner is not an admin), conflict (already a member).
func (s *Service) JoinWithCode(ctx context.Context, actor id.UserID, orgID id.OrgID, code string) error {
	invite, err := s.invites.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "invalid invite code")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up invite code")
	}
	if !invite.Enabled {
		return dErrors.New(dErrors.CodeDisabled, "invite code is disabled")
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		owner, err := s.memberships.Find(txCtx, orgID, invite.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "invite code does not grant access to this organization")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code owner membership")
		}
		if !owner.IsAdmin() {
			return dErrors.New(dErrors.CodeForbidden, "invite code owner is not an admin of this organization")
		}

		if _, err := s.memberships.Find(txCtx, orgID, actor); err == nil {
			return dErrors.New(dErrors.CodeConflict, "already a member of this organization")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing membership")
		}

		membership := &models.Membership{
			OrgID:     orgID,
			UserID:    actor,
			Role:      id.RoleViewer,
			CreatedAt: requestcontext.Now(txCtx),
		}
		if err := s.memberships.Add(txCtx, membership); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "already a member of this organization")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add membership")
		}

		if s.metrics != nil {
			s.metrics.IncrementMembersJoined()
		}
		return nil
	})
}
