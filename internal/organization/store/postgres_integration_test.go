//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"orgkit/internal/organization/models"
	"orgkit/internal/organization/store"
	id "orgkit/pkg/domain"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/platform/tx"
	"orgkit/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	orgs        *store.PostgresOrganizations
	memberships *store.PostgresMemberships
	settings    *store.PostgresSettings
	invites     *store.PostgresInvites
	apiKeys     *store.PostgresAPIKeys
	directory   *store.PostgresDirectory
	runner      *tx.SQLRunner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.orgs = store.NewPostgresOrganizations(s.postgres.DB)
	s.memberships = store.NewPostgresMemberships(s.postgres.DB)
	s.settings = store.NewPostgresSettings(s.postgres.DB)
	s.invites = store.NewPostgresInvites(s.postgres.DB)
	s.apiKeys = store.NewPostgresAPIKeys(s.postgres.DB)
	s.directory = store.NewPostgresDirectory(s.postgres.DB)
	s.runner = tx.NewRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx,
		"api_keys", "invite_codes", "org_memberships", "organizations", "user_profiles")
	s.Require().NoError(err)
	s.Require().NoError(s.settings.Update(ctx, models.DefaultSystemSettings()))
}

func (s *PostgresStoreSuite) createOrg(ctx context.Context, name string) *models.Organization {
	org := &models.Organization{
		Name:       name,
		ExternalID: uuid.New(),
		CreatedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.orgs.Create(ctx, org))
	return org
}

// TestOrganizationRoundTrip verifies inserts come back intact with generated IDs.
func (s *PostgresStoreSuite) TestOrganizationRoundTrip() {
	ctx := context.Background()

	org := s.createOrg(ctx, "Acme")
	s.Require().NotZero(org.ID)

	found, err := s.orgs.FindByID(ctx, org.ID)
	s.Require().NoError(err)
	s.Equal("Acme", found.Name)
	s.Equal(org.ExternalID, found.ExternalID)

	s.Require().NoError(s.orgs.Rename(ctx, org.ID, "Acme Corp"))
	found, err = s.orgs.FindByID(ctx, org.ID)
	s.Require().NoError(err)
	s.Equal("Acme Corp", found.Name)
}

// TestMembershipUniqueConstraint verifies the org-user pair is enforced by the
// database, not just application code.
func (s *PostgresStoreSuite) TestMembershipUniqueConstraint() {
	ctx := context.Background()
	org := s.createOrg(ctx, "Unique Pair")
	userID := id.UserID(uuid.New())

	first := &models.Membership{OrgID: org.ID, UserID: userID, Role: id.RoleAdmin, CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.memberships.Add(ctx, first))

	dup := &models.Membership{OrgID: org.ID, UserID: userID, Role: id.RoleViewer, CreatedAt: time.Now().UTC()}
	err := s.memberships.Add(ctx, dup)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

// TestConcurrentMembershipAdd verifies concurrent joins for the same user land
// exactly one row.
func (s *PostgresStoreSuite) TestConcurrentMembershipAdd() {
	ctx := context.Background()
	org := s.createOrg(ctx, "Concurrent Join")
	userID := id.UserID(uuid.New())
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := &models.Membership{OrgID: org.ID, UserID: userID, Role: id.RoleViewer, CreatedAt: time.Now().UTC()}
			if err := s.memberships.Add(ctx, m); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())

	count, err := s.memberships.CountForUser(ctx, userID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

// TestTransactionRollback verifies a failed multi-store operation leaves no
// partial rows behind.
func (s *PostgresStoreSuite) TestTransactionRollback() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())

	var orgID id.OrgID
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		org := s.createOrg(txCtx, "Rolled Back")
		orgID = org.ID
		s.Require().NoError(s.memberships.Add(txCtx, &models.Membership{
			OrgID: org.ID, UserID: userID, Role: id.RoleAdmin, CreatedAt: time.Now().UTC(),
		}))
		return context.Canceled
	})
	s.Require().Error(err)

	_, err = s.orgs.FindByID(ctx, orgID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	count, err := s.memberships.CountForUser(ctx, userID)
	s.Require().NoError(err)
	s.Zero(count)
}

// TestInviteCodeConstraints verifies one code per user and globally unique codes.
func (s *PostgresStoreSuite) TestInviteCodeConstraints() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())

	s.Require().NoError(s.invites.Create(ctx, &models.InviteCode{
		UserID: userID, Code: "pg-code-1", Enabled: true, CreatedAt: time.Now().UTC(),
	}))

	err := s.invites.Create(ctx, &models.InviteCode{
		UserID: userID, Code: "pg-code-2", Enabled: true, CreatedAt: time.Now().UTC(),
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	err = s.invites.Create(ctx, &models.InviteCode{
		UserID: id.UserID(uuid.New()), Code: "pg-code-1", Enabled: true, CreatedAt: time.Now().UTC(),
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	invite, err := s.invites.FindByCode(ctx, "pg-code-1")
	s.Require().NoError(err)
	s.True(invite.Enabled)

	s.Require().NoError(s.invites.SetEnabled(ctx, userID, false))
	invite, err = s.invites.FindByUser(ctx, userID)
	s.Require().NoError(err)
	s.False(invite.Enabled)
}

// TestSettingsSingleton verifies updates hit the single settings row.
func (s *PostgresStoreSuite) TestSettingsSingleton() {
	ctx := context.Background()

	updated := models.SystemSettings{OrganizationLimit: 7, UserCanCreateOrg: false}
	s.Require().NoError(s.settings.Update(ctx, updated))

	settings, err := s.settings.Get(ctx)
	s.Require().NoError(err)
	s.Equal(updated, settings)
}

// TestDirectoryCaseInsensitiveEmail verifies email lookup ignores case.
func (s *PostgresStoreSuite) TestDirectoryCaseInsensitiveEmail() {
	ctx := context.Background()
	userID := uuid.New()
	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, email) VALUES ($1, $2)`, userID, "Carol@Example.com")
	s.Require().NoError(err)

	resolved, err := s.directory.UserForEmail(ctx, "carol@example.COM")
	s.Require().NoError(err)
	s.Equal(id.UserID(userID), resolved)

	email, err := s.directory.EmailForUser(ctx, id.UserID(userID))
	s.Require().NoError(err)
	s.Equal("Carol@Example.com", email)
}

// TestAPIKeyScoping verifies delete requires the owning organization.
func (s *PostgresStoreSuite) TestAPIKeyScoping() {
	ctx := context.Background()
	orgA := s.createOrg(ctx, "Keys A")
	orgB := s.createOrg(ctx, "Keys B")

	key := &models.APIKey{OrgID: orgA.ID, Prefix: "ok_pgtest1", KeyHash: "hash", CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.apiKeys.Create(ctx, key))
	s.Require().NotZero(key.ID)

	err := s.apiKeys.Delete(ctx, orgB.ID, key.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.apiKeys.Delete(ctx, orgA.ID, key.ID))

	keys, err := s.apiKeys.ListForOrg(ctx, orgA.ID)
	s.Require().NoError(err)
	s.Empty(keys)
}
