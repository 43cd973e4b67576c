package models

import (
	"time"

	id "orgkit/pkg/domain"
)

// Membership links a user to an organization with a role.
type Membership struct {
	ID        int64     `json:"id"`
	OrgID     id.OrgID  `json:"organisation_id"`
	UserID    id.UserID `json:"user_id"`
	Role      id.Role   `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberDetail is a membership joined with the member's email, as returned by
// the member listing.
type MemberDetail struct {
	UserID   id.UserID `json:"user_id"`
	Role     id.Role   `json:"role"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"created_at"`
}

// UserOrganization is a membership joined with its organization, returned by
// the "my organizations" listing that seeds client session state.
type UserOrganization struct {
	Membership   Membership   `json:"membership"`
	Organization Organization `json:"organisation"`
}

// IsAdmin reports whether the membership grants admin rights.
func (m Membership) IsAdmin() bool {
	return m.Role == id.RoleAdmin
}
