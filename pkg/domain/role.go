package domain

import dErrors "orgkit/pkg/domain-errors"

// Role is the membership role inside an organization.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// ParseRole validates a role string against the closed vocabulary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleEditor, RoleViewer:
		return Role(s), nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown organization role")
	}
}

func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// CanManageMembers reports whether the role may change memberships.
func (r Role) CanManageMembers() bool {
	return r == RoleAdmin
}
