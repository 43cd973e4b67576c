package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"orgkit/internal/organization/models"
	"orgkit/internal/organization/service"
	"orgkit/internal/organization/store"
	id "orgkit/pkg/domain"
	adminmw "orgkit/pkg/platform/middleware/admin"
	"orgkit/pkg/testutil"
)

const adminToken = "secret-token"

type fixture struct {
	router    chi.Router
	directory *store.InMemoryDirectory
	svc       *service.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	directory := store.NewInMemoryDirectory()
	svc := service.New(
		store.NewInMemoryOrganizations(),
		store.NewInMemoryMemberships(),
		store.NewInMemorySettings(),
		store.NewInMemoryInvites(),
		store.NewInMemoryAPIKeys(),
		directory,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger)
	router := chi.NewRouter()
	router.Route("/api", h.Register)
	router.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	return &fixture{router: router, directory: directory, svc: svc}
}

func (f *fixture) newUser(t *testing.T, email string) id.UserID {
	t.Helper()
	userID := id.UserID(uuid.New())
	f.directory.Register(userID, email)
	return userID
}

func TestCreateOrganizationViaHandler(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "founder@example.com")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": "Acme"})
	req = testutil.WithUser(req, userID, "founder@example.com")
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	org := testutil.UnmarshalResponse[models.Organization](t, rr)
	if org.ID == 0 {
		t.Fatalf("expected organisation id in response")
	}
	if org.Name != "Acme" {
		t.Fatalf("expected name Acme, got %q", org.Name)
	}

	// Creator shows up as admin in their listing.
	listReq := testutil.NewJSONRequest(t, http.MethodGet, "/api/organisations", nil)
	listReq = testutil.WithUser(listReq, userID, "founder@example.com")
	listRR := testutil.DoRequest(f.router, listReq)
	testutil.AssertStatus(t, listRR, http.StatusOK)

	mine := testutil.UnmarshalResponse[[]models.UserOrganization](t, listRR)
	if len(*mine) != 1 {
		t.Fatalf("expected 1 organisation, got %d", len(*mine))
	}
	if (*mine)[0].Membership.Role != id.RoleAdmin {
		t.Fatalf("expected creator to be admin, got %s", (*mine)[0].Membership.Role)
	}
}

func TestCreateOrganizationRequiresAuth(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": "Acme"})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertErrorCode(t, rr, "unauthorized")
}

func TestCreateOrganizationRejectsShortName(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "founder@example.com")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": "ab"})
	req = testutil.WithUser(req, userID, "founder@example.com")
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "bad_request")
}

func TestOrganizationLimitEnforced(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "collector@example.com")

	for _, name := range []string{"One Org", "Two Org", "Three Org"} {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": name})
		req = testutil.WithUser(req, userID, "collector@example.com")
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": "Four Org"})
	req = testutil.WithUser(req, userID, "collector@example.com")
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	testutil.AssertErrorCode(t, rr, "limit_exceeded")
}

func TestCreationDisabledBySettings(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "blocked@example.com")

	// Flip the toggle through the admin surface.
	settingsReq := testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings",
		models.SystemSettings{OrganizationLimit: 3, UserCanCreateOrg: false})
	settingsReq.Header.Set("X-Admin-Token", adminToken)
	testutil.AssertStatus(t, testutil.DoRequest(f.router, settingsReq), http.StatusOK)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": "Nope Inc"})
	req = testutil.WithUser(req, userID, "blocked@example.com")
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertErrorCode(t, rr, "disabled")
}

func TestAdminSettingsRequireToken(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/settings", nil)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestRenameRequiresAdminRole(t *testing.T) {
	f := newFixture(t)
	adminID := f.newUser(t, "owner@example.com")
	viewerID := f.newUser(t, "viewer@example.com")

	org := f.createOrg(t, adminID, "Rename Target")
	f.joinAsViewer(t, adminID, viewerID, org.ID)

	req := testutil.NewJSONRequest(t, http.MethodPatch, "/api/organisations/"+org.ID.String(),
		map[string]string{"name": "Renamed"})
	req = testutil.WithUser(req, viewerID, "viewer@example.com")
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertErrorCode(t, rr, "forbidden")
}

func TestInviteCodeFlow(t *testing.T) {
	f := newFixture(t)
	adminID := f.newUser(t, "host@example.com")
	joinerID := f.newUser(t, "guest@example.com")

	org := f.createOrg(t, adminID, "Invite Org")

	// Admin fetches (and thereby creates) their invite code.
	codeReq := testutil.NewJSONRequest(t, http.MethodGet, "/api/invite-code", nil)
	codeReq = testutil.WithUser(codeReq, adminID, "host@example.com")
	codeRR := testutil.DoRequest(f.router, codeReq)
	testutil.AssertStatus(t, codeRR, http.StatusOK)
	invite := testutil.UnmarshalResponse[models.InviteCode](t, codeRR)

	// A second fetch returns the same code.
	againRR := testutil.DoRequest(f.router, testutil.WithUser(
		testutil.NewJSONRequest(t, http.MethodGet, "/api/invite-code", nil), adminID, "host@example.com"))
	again := testutil.UnmarshalResponse[models.InviteCode](t, againRR)
	if again.Code != invite.Code {
		t.Fatalf("expected stable invite code, got %q then %q", invite.Code, again.Code)
	}

	// Guest joins with the code and lands as viewer.
	joinReq := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations/"+org.ID.String()+"/join",
		map[string]string{"code": invite.Code})
	joinReq = testutil.WithUser(joinReq, joinerID, "guest@example.com")
	testutil.AssertStatus(t, testutil.DoRequest(f.router, joinReq), http.StatusOK)

	membersReq := testutil.NewJSONRequest(t, http.MethodGet, "/api/organisations/"+org.ID.String()+"/members", nil)
	membersReq = testutil.WithUser(membersReq, adminID, "host@example.com")
	membersRR := testutil.DoRequest(f.router, membersReq)
	testutil.AssertStatus(t, membersRR, http.StatusOK)

	members := testutil.UnmarshalResponse[[]models.MemberDetail](t, membersRR)
	if len(*members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(*members))
	}
}

func TestJoinWithDisabledCodeRejected(t *testing.T) {
	f := newFixture(t)
	adminID := f.newUser(t, "host@example.com")
	joinerID := f.newUser(t, "guest@example.com")

	org := f.createOrg(t, adminID, "Locked Org")

	codeRR := testutil.DoRequest(f.router, testutil.WithUser(
		testutil.NewJSONRequest(t, http.MethodGet, "/api/invite-code", nil), adminID, "host@example.com"))
	invite := testutil.UnmarshalResponse[models.InviteCode](t, codeRR)

	disableReq := testutil.NewJSONRequest(t, http.MethodPut, "/api/invite-code", map[string]bool{"enabled": false})
	disableReq = testutil.WithUser(disableReq, adminID, "host@example.com")
	testutil.AssertStatus(t, testutil.DoRequest(f.router, disableReq), http.StatusOK)

	joinReq := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations/"+org.ID.String()+"/join",
		map[string]string{"code": invite.Code})
	joinReq = testutil.WithUser(joinReq, joinerID, "guest@example.com")
	rr := testutil.DoRequest(f.router, joinReq)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertErrorCode(t, rr, "disabled")
}

func TestLastAdminCannotBeDemoted(t *testing.T) {
	f := newFixture(t)
	adminID := f.newUser(t, "solo@example.com")
	org := f.createOrg(t, adminID, "Solo Admin Org")

	req := testutil.NewJSONRequest(t, http.MethodPut,
		"/api/organisations/"+org.ID.String()+"/members/"+adminID.String()+"/role",
		map[string]string{"role": "VIEWER"})
	req = testutil.WithUser(req, adminID, "solo@example.com")
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertErrorCode(t, rr, "invariant_violation")
}

func TestAPIKeyLifecycle(t *testing.T) {
	f := newFixture(t)
	adminID := f.newUser(t, "keys@example.com")
	org := f.createOrg(t, adminID, "Keyed Org")

	genReq := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations/"+org.ID.String()+"/api-keys", nil)
	genReq = testutil.WithUser(genReq, adminID, "keys@example.com")
	genRR := testutil.DoRequest(f.router, genReq)
	testutil.AssertStatus(t, genRR, http.StatusCreated)

	created := testutil.UnmarshalResponse[APIKeyResponse](t, genRR)
	if created.Key == "" {
		t.Fatalf("expected raw key in generation response")
	}

	listRR := testutil.DoRequest(f.router, testutil.WithUser(
		testutil.NewJSONRequest(t, http.MethodGet, "/api/organisations/"+org.ID.String()+"/api-keys", nil),
		adminID, "keys@example.com"))
	testutil.AssertStatus(t, listRR, http.StatusOK)

	keys := testutil.UnmarshalResponse[[]APIKeyResponse](t, listRR)
	if len(*keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(*keys))
	}
	if (*keys)[0].Key != "" {
		t.Fatalf("raw key must never appear in listings")
	}
}

func (f *fixture) createOrg(t *testing.T, actor id.UserID, name string) *models.Organization {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations", map[string]string{"name": name})
	req = testutil.WithUser(req, actor, "")
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalResponse[models.Organization](t, rr)
}

func (f *fixture) joinAsViewer(t *testing.T, ownerID, joinerID id.UserID, orgID id.OrgID) {
	t.Helper()
	codeRR := testutil.DoRequest(f.router, testutil.WithUser(
		testutil.NewJSONRequest(t, http.MethodGet, "/api/invite-code", nil), ownerID, ""))
	invite := testutil.UnmarshalResponse[models.InviteCode](t, codeRR)

	joinReq := testutil.NewJSONRequest(t, http.MethodPost, "/api/organisations/"+orgID.String()+"/join",
		map[string]string{"code": invite.Code})
	joinReq = testutil.WithUser(joinReq, joinerID, "")
	testutil.AssertStatus(t, testutil.DoRequest(f.router, joinReq), http.StatusOK)
}
