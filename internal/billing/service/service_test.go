package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgkit/internal/billing/models"
	"orgkit/internal/billing/paddle"
	billingstore "orgkit/internal/billing/store"
	orgmodels "orgkit/internal/organization/models"
	orgstore "orgkit/internal/organization/store"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
)

// fakeProvider records provider calls and serves canned customers.
type fakeProvider struct {
	mu        sync.Mutex
	customers []paddle.Customer
	portalURL string
	portalErr error

	listCalls       int
	createCalls     int
	statusCalls     int
	portalCalls     int
	lastStatusValue string
}

func (f *fakeProvider) ListCustomersByEmail(_ context.Context, email string, _ ...string) ([]paddle.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var result []paddle.Customer
	for _, c := range f.customers {
		if c.Email == email {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeProvider) CreateCustomer(_ context.Context, email string) (*paddle.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	c := paddle.Customer{ID: "ctm_new", Email: email, Status: paddle.CustomerActive}
	f.customers = append(f.customers, c)
	return &c, nil
}

func (f *fakeProvider) SetCustomerStatus(_ context.Context, customerID, status string) (*paddle.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	f.lastStatusValue = status

	for i := range f.customers {
		if f.customers[i].ID == customerID {
			f.customers[i].Status = status
			c := f.customers[i]
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (f *fakeProvider) CreatePortalSession(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portalCalls++
	if f.portalErr != nil {
		return "", f.portalErr
	}
	return f.portalURL, nil
}

type billingFixture struct {
	svc         *Service
	provider    *fakeProvider
	admins      *billingstore.InMemoryBillingAdmins
	subs        *billingstore.InMemorySubscriptions
	memberships *orgstore.InMemoryMemberships
	directory   *orgstore.InMemoryDirectory
}

func newBillingFixture(opts ...Option) *billingFixture {
	f := &billingFixture{
		provider:    &fakeProvider{portalURL: "https://portal.example.com/session"},
		admins:      billingstore.NewInMemoryBillingAdmins(),
		subs:        billingstore.NewInMemorySubscriptions(),
		memberships: orgstore.NewInMemoryMemberships(),
		directory:   orgstore.NewInMemoryDirectory(),
	}
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	f.svc = New(f.admins, f.subs, f.memberships, f.directory, f.provider, opts...)
	return f
}

func (f *billingFixture) addMember(t *testing.T, orgID id.OrgID, email string, role id.Role) id.UserID {
	t.Helper()
	userID := id.UserID(uuid.New())
	f.directory.Register(userID, email)
	require.NoError(t, f.memberships.Add(context.Background(), &orgmodels.Membership{
		OrgID: orgID, UserID: userID, Role: role, CreatedAt: time.Now(),
	}))
	return userID
}

func TestPortalWithoutBillingAdminIs404AndNoProviderCalls(t *testing.T) {
	f := newBillingFixture()

	_, err := f.svc.CustomerPortalSession(context.Background(), id.OrgID(1))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Zero(t, f.provider.listCalls)
	assert.Zero(t, f.provider.createCalls)
	assert.Zero(t, f.provider.portalCalls)
}

func TestPortalReactivatesArchivedCustomerExactlyOnce(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	require.NoError(t, f.admins.Set(ctx, orgID, "billing@example.com"))
	f.provider.customers = []paddle.Customer{
		{ID: "ctm_old", Email: "billing@example.com", Status: paddle.CustomerArchived},
	}

	url, err := f.svc.CustomerPortalSession(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/session", url)

	assert.Equal(t, 1, f.provider.statusCalls)
	assert.Equal(t, paddle.CustomerActive, f.provider.lastStatusValue)
	assert.Zero(t, f.provider.createCalls)
}

func TestPortalCreatesCustomerWhenNoneExists(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	require.NoError(t, f.admins.Set(ctx, orgID, "fresh@example.com"))

	url, err := f.svc.CustomerPortalSession(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/session", url)

	assert.Equal(t, 1, f.provider.createCalls)
	assert.Zero(t, f.provider.statusCalls)
}

func TestPortalReusesActiveCustomer(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	require.NoError(t, f.admins.Set(ctx, orgID, "active@example.com"))
	f.provider.customers = []paddle.Customer{
		{ID: "ctm_live", Email: "active@example.com", Status: paddle.CustomerActive},
	}

	_, err := f.svc.CustomerPortalSession(ctx, orgID)
	require.NoError(t, err)
	assert.Zero(t, f.provider.createCalls)
	assert.Zero(t, f.provider.statusCalls)
}

func TestPortalPropagatesSessionFailureWithoutCompensation(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	require.NoError(t, f.admins.Set(ctx, orgID, "fresh@example.com"))
	f.provider.portalErr = dErrors.New(dErrors.CodeUnavailable, "provider down")

	_, err := f.svc.CustomerPortalSession(ctx, orgID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	// The freshly created customer is not rolled back.
	assert.Equal(t, 1, f.provider.createCalls)
}

func TestSetBillingAdminRequiresAdminEmail(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	actor := f.addMember(t, orgID, "owner@example.com", id.RoleAdmin)
	f.addMember(t, orgID, "viewer@example.com", id.RoleViewer)

	err := f.svc.SetBillingAdmin(ctx, actor, orgID, "viewer@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	err = f.svc.SetBillingAdmin(ctx, actor, orgID, "stranger@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	require.NoError(t, f.svc.SetBillingAdmin(ctx, actor, orgID, "owner@example.com"))

	email, err := f.svc.BillingAdmin(ctx, actor, orgID)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestSetBillingAdminRejectsNonAdminActor(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	f.addMember(t, orgID, "owner@example.com", id.RoleAdmin)
	viewer := f.addMember(t, orgID, "viewer@example.com", id.RoleViewer)

	err := f.svc.SetBillingAdmin(ctx, viewer, orgID, "owner@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

// memoryCache is a StatusCache for tests.
type memoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return value, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.sets++
	return nil
}

func TestSubscriptionStatusUsesCache(t *testing.T) {
	cache := newMemoryCache()
	f := newBillingFixture(WithStatusCache(cache, time.Minute))
	ctx := context.Background()
	orgID := id.OrgID(1)
	member := f.addMember(t, orgID, "member@example.com", id.RoleViewer)

	require.NoError(t, f.subs.Upsert(ctx, &models.Subscription{
		SubscriptionID: "sub_1",
		Status:         models.SubscriptionActive,
		PriceID:        "pri_1",
		ProductID:      "pro_1",
		CustomerID:     "ctm_1",
		OrgID:          &orgID,
		UpdatedAt:      time.Now(),
	}))

	first, err := f.svc.SubscriptionStatus(ctx, member, orgID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, first.Status)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache even after the row changes.
	require.NoError(t, f.subs.Upsert(ctx, &models.Subscription{
		SubscriptionID: "sub_1",
		Status:         models.SubscriptionCanceled,
		CustomerID:     "ctm_1",
		OrgID:          &orgID,
		UpdatedAt:      time.Now(),
	}))

	second, err := f.svc.SubscriptionStatus(ctx, member, orgID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, second.Status)
	assert.Equal(t, 1, cache.sets)
}

func TestSubscriptionStatusNoneWhenAbsent(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)
	member := f.addMember(t, orgID, "member@example.com", id.RoleViewer)

	summary, err := f.svc.SubscriptionStatus(ctx, member, orgID)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, summary.Status)
}

func TestSubscriptionStatusRequiresMembership(t *testing.T) {
	f := newBillingFixture()

	_, err := f.svc.SubscriptionStatus(context.Background(), id.UserID(uuid.New()), id.OrgID(1))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSubscriptionStatusForOrgSkipsMembershipCheck(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	orgID := id.OrgID(1)

	// No membership exists; the machine path is authenticated by API key.
	summary, err := f.svc.SubscriptionStatusForOrg(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, summary.Status)

	require.NoError(t, f.subs.Upsert(ctx, &models.Subscription{
		SubscriptionID: "sub_9",
		CustomerID:     "ctm_9",
		Status:         models.SubscriptionActive,
		PriceID:        "pri_9",
		ProductID:      "pro_9",
		OrgID:          &orgID,
	}))

	summary, err = f.svc.SubscriptionStatusForOrg(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, summary.Status)
	assert.Equal(t, "sub_9", summary.SubscriptionID)
}
