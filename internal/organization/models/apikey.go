package models

import (
	"time"

	id "orgkit/pkg/domain"
)

// APIKey is a per-organization opaque token. Only the bcrypt hash is stored;
// the raw key is returned exactly once at generation time.
type APIKey struct {
	ID        int64     `json:"id"`
	OrgID     id.OrgID  `json:"org_id"`
	Prefix    string    `json:"prefix"` // first characters of the raw key, for display
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
