package models

import (
	"time"

	id "orgkit/pkg/domain"
)

// InviteCode is a per-user token enabling self-service joining of that user's
// organizations. One code per user; the enabled flag gates redemption.
type InviteCode struct {
	UserID    id.UserID `json:"user_id"`
	Code      string    `json:"user_code"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemSettings is the singleton row controlling organization creation.
type SystemSettings struct {
	OrganizationLimit int  `json:"organisation_limit"`
	UserCanCreateOrg  bool `json:"user_can_create_organisation"`
}

// DefaultSystemSettings mirrors the seed row shipped with migrations.
func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		OrganizationLimit: 3,
		UserCanCreateOrg:  true,
	}
}
