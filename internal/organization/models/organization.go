package models

import (
	"time"

	"github.com/google/uuid"

	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
)

// Name length bounds for organizations.
const (
	MinNameLength = 3
	MaxNameLength = 100
)

// Organization is the tenant unit. All billing, membership, and document
// scoping is per-organization.
//
// Invariants:
//   - Name is between MinNameLength and MaxNameLength characters
//   - ExternalID is a non-nil UUID, assigned at creation, immutable
//   - An organization always has at least one ADMIN member (enforced at the
//     service layer: the last admin cannot be demoted or removed)
type Organization struct {
	ID         id.OrgID  `json:"id"`
	Name       string    `json:"name"`
	ExternalID uuid.UUID `json:"uuid"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidateName checks the organization name length bounds.
func ValidateName(name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return dErrors.New(dErrors.CodeBadRequest, "organization name must be between 3 and 100 characters")
	}
	return nil
}

// NewOrganization constructs an organization pending store assignment of its
// numeric ID.
func NewOrganization(name string, now time.Time) (*Organization, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Organization{
		Name:       name,
		ExternalID: uuid.New(),
		CreatedAt:  now,
	}, nil
}
