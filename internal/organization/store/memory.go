// Package store provides PostgreSQL and in-memory implementations of the
// organization service's store interfaces. The in-memory variants back unit
// tests and dependency-free development; behavior matches the SQL stores,
// including sentinel errors.
package store

import (
	"context"
	"strings"
	"sync"

	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	"orgkit/pkg/platform/sentinel"
)

// InMemoryOrganizations is a mutex-guarded organization store.
type InMemoryOrganizations struct {
	mu     sync.RWMutex
	nextID int64
	orgs   map[id.OrgID]*models.Organization
}

func NewInMemoryOrganizations() *InMemoryOrganizations {
	return &InMemoryOrganizations{
		nextID: 1,
		orgs:   make(map[id.OrgID]*models.Organization),
	}
}

func (s *InMemoryOrganizations) Create(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org.ID = id.OrgID(s.nextID)
	s.nextID++
	clone := *org
	s.orgs[org.ID] = &clone
	return nil
}

func (s *InMemoryOrganizations) FindByID(_ context.Context, orgID id.OrgID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *org
	return &clone, nil
}

func (s *InMemoryOrganizations) Rename(_ context.Context, orgID id.OrgID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return sentinel.ErrNotFound
	}
	org.Name = name
	return nil
}

// InMemoryMemberships is a mutex-guarded membership store.
type InMemoryMemberships struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[membershipKey]*models.Membership
}

type membershipKey struct {
	org  id.OrgID
	user id.UserID
}

func NewInMemoryMemberships() *InMemoryMemberships {
	return &InMemoryMemberships{
		nextID: 1,
		rows:   make(map[membershipKey]*models.Membership),
	}
}

func (s *InMemoryMemberships) Add(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{org: m.OrgID, user: m.UserID}
	if _, exists := s.rows[key]; exists {
		return sentinel.ErrConflict
	}
	m.ID = s.nextID
	s.nextID++
	clone := *m
	s.rows[key] = &clone
	return nil
}

func (s *InMemoryMemberships) Find(_ context.Context, orgID id.OrgID, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.rows[membershipKey{org: orgID, user: userID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *InMemoryMemberships) List(_ context.Context, orgID id.OrgID) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Membership
	for _, m := range s.rows {
		if m.OrgID == orgID {
			result = append(result, *m)
		}
	}
	return result, nil
}

func (s *InMemoryMemberships) ListForUser(_ context.Context, userID id.UserID) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Membership
	for _, m := range s.rows {
		if m.UserID == userID {
			result = append(result, *m)
		}
	}
	return result, nil
}

func (s *InMemoryMemberships) UpdateRole(_ context.Context, orgID id.OrgID, userID id.UserID, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[membershipKey{org: orgID, user: userID}]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Role = role
	return nil
}

func (s *InMemoryMemberships) Remove(_ context.Context, orgID id.OrgID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{org: orgID, user: userID}
	if _, ok := s.rows[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, key)
	return nil
}

func (s *InMemoryMemberships) CountAdmins(_ context.Context, orgID id.OrgID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.rows {
		if m.OrgID == orgID && m.Role == id.RoleAdmin {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryMemberships) CountForUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.rows {
		if m.UserID == userID {
			count++
		}
	}
	return count, nil
}

// InMemorySettings holds the system settings singleton.
type InMemorySettings struct {
	mu       sync.RWMutex
	settings models.SystemSettings
}

func NewInMemorySettings() *InMemorySettings {
	return &InMemorySettings{settings: models.DefaultSystemSettings()}
}

func (s *InMemorySettings) Get(_ context.Context) (models.SystemSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *InMemorySettings) Update(_ context.Context, settings models.SystemSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// InMemoryInvites is a mutex-guarded invite code store.
type InMemoryInvites struct {
	mu     sync.RWMutex
	byUser map[id.UserID]*models.InviteCode
	byCode map[string]*models.InviteCode
}

func NewInMemoryInvites() *InMemoryInvites {
	return &InMemoryInvites{
		byUser: make(map[id.UserID]*models.InviteCode),
		byCode: make(map[string]*models.InviteCode),
	}
}

func (s *InMemoryInvites) Create(_ context.Context, invite *models.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[invite.UserID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byCode[invite.Code]; exists {
		return sentinel.ErrConflict
	}
	clone := *invite
	s.byUser[invite.UserID] = &clone
	s.byCode[invite.Code] = &clone
	return nil
}

func (s *InMemoryInvites) FindByUser(_ context.Context, userID id.UserID) (*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *invite
	return &clone, nil
}

func (s *InMemoryInvites) FindByCode(_ context.Context, code string) (*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *invite
	return &clone, nil
}

func (s *InMemoryInvites) SetEnabled(_ context.Context, userID id.UserID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.byUser[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	invite.Enabled = enabled
	return nil
}

// InMemoryAPIKeys is a mutex-guarded API key store.
type InMemoryAPIKeys struct {
	mu     sync.RWMutex
	nextID int64
	keys   map[int64]*models.APIKey
}

func NewInMemoryAPIKeys() *InMemoryAPIKeys {
	return &InMemoryAPIKeys{
		nextID: 1,
		keys:   make(map[int64]*models.APIKey),
	}
}

func (s *InMemoryAPIKeys) Create(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key.ID = s.nextID
	s.nextID++
	clone := *key
	s.keys[key.ID] = &clone
	return nil
}

func (s *InMemoryAPIKeys) ListForOrg(_ context.Context, orgID id.OrgID) ([]models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.APIKey
	for _, key := range s.keys {
		if key.OrgID == orgID {
			result = append(result, *key)
		}
	}
	return result, nil
}

func (s *InMemoryAPIKeys) Delete(_ context.Context, orgID id.OrgID, keyID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok || key.OrgID != orgID {
		return sentinel.ErrNotFound
	}
	delete(s.keys, keyID)
	return nil
}

// InMemoryDirectory maps users to emails. Production reads the profile rows
// mirrored from the auth provider; tests seed this directly.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	byUser  map[id.UserID]string
	byEmail map[string]id.UserID
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		byUser:  make(map[id.UserID]string),
		byEmail: make(map[string]id.UserID),
	}
}

// Register records a user-email pair.
func (s *InMemoryDirectory) Register(userID id.UserID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	s.byUser[userID] = email
	s.byEmail[email] = userID
}

func (s *InMemoryDirectory) EmailForUser(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.byUser[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return email, nil
}

func (s *InMemoryDirectory) UserForEmail(_ context.Context, email string) (id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return id.UserID{}, sentinel.ErrNotFound
	}
	return userID, nil
}
