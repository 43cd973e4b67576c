package handler

import "time"

// CreateOrganizationRequest is the body for POST /organisations.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// RenameOrganizationRequest is the body for PATCH /organisations/{orgID}.
type RenameOrganizationRequest struct {
	Name string `json:"name"`
}

// JoinRequest is the body for POST /organisations/{orgID}/join.
type JoinRequest struct {
	Code string `json:"code"`
}

// UpdateRoleRequest is the body for PUT .../members/{userID}/role.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// SetInviteEnabledRequest is the body for PUT /invite-code.
type SetInviteEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// StatusResponse acknowledges mutations that return no entity.
type StatusResponse struct {
	Status string `json:"status"`
}

// APIKeyResponse describes an API key; Key carries the raw secret and is set
// only in the generation response.
type APIKeyResponse struct {
	ID        int64     `json:"id"`
	Prefix    string    `json:"prefix"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
