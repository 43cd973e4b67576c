// Package store provides PostgreSQL and in-memory implementations of the
// billing stores. The in-memory variants back unit tests and drive the same
// sentinel error contract as the SQL versions.
package store

import (
	"context"
	"sync"

	"orgkit/internal/billing/models"
	id "orgkit/pkg/domain"
	"orgkit/pkg/platform/sentinel"
)

// InMemoryBillingAdmins maps organizations to their billing admin email.
type InMemoryBillingAdmins struct {
	mu     sync.RWMutex
	admins map[id.OrgID]string
}

func NewInMemoryBillingAdmins() *InMemoryBillingAdmins {
	return &InMemoryBillingAdmins{admins: make(map[id.OrgID]string)}
}

func (s *InMemoryBillingAdmins) Set(_ context.Context, orgID id.OrgID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[orgID] = email
	return nil
}

func (s *InMemoryBillingAdmins) Get(_ context.Context, orgID id.OrgID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.admins[orgID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return email, nil
}

// InMemoryCustomers stores provider customer mirrors keyed by customer ID.
type InMemoryCustomers struct {
	mu        sync.RWMutex
	customers map[string]*models.Customer
}

func NewInMemoryCustomers() *InMemoryCustomers {
	return &InMemoryCustomers{customers: make(map[string]*models.Customer)}
}

func (s *InMemoryCustomers) Upsert(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.customers[c.CustomerID]; ok {
		existing.Email = c.Email
		existing.MarketingConsent = c.MarketingConsent
		existing.UpdatedAt = c.UpdatedAt
		return nil
	}
	clone := *c
	s.customers[c.CustomerID] = &clone
	return nil
}

func (s *InMemoryCustomers) FindByID(_ context.Context, customerID string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// InMemorySubscriptions stores subscription mirrors keyed by subscription ID.
type InMemorySubscriptions struct {
	mu   sync.RWMutex
	subs map[string]*models.Subscription
}

func NewInMemorySubscriptions() *InMemorySubscriptions {
	return &InMemorySubscriptions{subs: make(map[string]*models.Subscription)}
}

func (s *InMemorySubscriptions) Upsert(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *sub
	if existing, ok := s.subs[sub.SubscriptionID]; ok {
		clone.CreatedAt = existing.CreatedAt
	}
	s.subs[sub.SubscriptionID] = &clone
	return nil
}

func (s *InMemorySubscriptions) FindByID(_ context.Context, subscriptionID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[subscriptionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *sub
	return &clone, nil
}

func (s *InMemorySubscriptions) FindByOrg(_ context.Context, orgID id.OrgID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Subscription
	for _, sub := range s.subs {
		if sub.OrgID == nil || *sub.OrgID != orgID {
			continue
		}
		if latest == nil || sub.UpdatedAt.After(latest.UpdatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

// InMemoryGrants is an append-only grant log.
type InMemoryGrants struct {
	mu     sync.RWMutex
	nextID int64
	grants []models.ProductGrant
}

func NewInMemoryGrants() *InMemoryGrants {
	return &InMemoryGrants{nextID: 1}
}

func (s *InMemoryGrants) InsertBatch(_ context.Context, grants []models.ProductGrant) error {
	if len(grants) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range grants {
		g.ID = s.nextID
		s.nextID++
		s.grants = append(s.grants, g)
	}
	return nil
}

func (s *InMemoryGrants) ListForCustomer(_ context.Context, customerID string) ([]models.ProductGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.ProductGrant
	for _, g := range s.grants {
		if g.CustomerID == customerID {
			result = append(result, g)
		}
	}
	return result, nil
}

// InMemoryEvents is an append-only webhook audit log.
type InMemoryEvents struct {
	mu     sync.RWMutex
	nextID int64
	events []models.RawEvent
}

func NewInMemoryEvents() *InMemoryEvents {
	return &InMemoryEvents{nextID: 1}
}

func (s *InMemoryEvents) Append(_ context.Context, event *models.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextID
	s.nextID++
	clone := *event
	clone.Payload = append([]byte(nil), event.Payload...)
	s.events = append(s.events, clone)
	return nil
}

// All returns a copy of every recorded event, oldest first.
func (s *InMemoryEvents) All() []models.RawEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RawEvent(nil), s.events...)
}
