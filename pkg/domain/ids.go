// Package domain holds shared domain primitives: typed identifiers and the
// organization role vocabulary. Typed IDs prevent accidental cross-assignment
// between identifier spaces at compile time.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "orgkit/pkg/domain-errors"
)

// UserID identifies an authenticated user. Users live in the external auth
// provider; we only ever see their UUID.
type UserID uuid.UUID

// OrgID identifies an organization. Organizations use numeric keys because the
// relational store assigns them from a sequence.
type OrgID int64

// ParseUserID validates and returns a UserID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return UserID{}, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeBadRequest, "user id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeBadRequest, "user id must not be nil")
	}
	return UserID(parsed), nil
}

func (u UserID) String() string {
	return uuid.UUID(u).String()
}

// IsNil reports whether the user ID is the zero value.
func (u UserID) IsNil() bool {
	return uuid.UUID(u) == uuid.Nil
}

// ParseOrgID validates and returns an OrgID from its decimal representation.
func ParseOrgID(s string) (OrgID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "organization id must be a positive integer")
	}
	return OrgID(n), nil
}

func (o OrgID) Int64() int64 {
	return int64(o)
}

func (o OrgID) String() string {
	return strconv.FormatInt(int64(o), 10)
}

// IsNil reports whether the org ID is unset.
func (o OrgID) IsNil() bool {
	return o == 0
}
