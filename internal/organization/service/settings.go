package service

import (
	"context"

	"orgkit/internal/organization/models"
	dErrors "orgkit/pkg/domain-errors"
)

// SystemSettings returns the creation controls. Operator surface; callers are
// gated by the admin token middleware, not by membership.
func (s *Service) SystemSettings(ctx context.Context) (models.SystemSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return models.SystemSettings{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load system settings")
	}
	return settings, nil
}

// UpdateSystemSettings replaces the creation controls.
func (s *Service) UpdateSystemSettings(ctx context.Context, settings models.SystemSettings) error {
	if settings.OrganizationLimit < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "organization limit must not be negative")
	}
	if err := s.settings.Update(ctx, settings); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update system settings")
	}
	return nil
}
