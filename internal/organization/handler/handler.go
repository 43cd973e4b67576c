// Package handler wires organization endpoints to the organization service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"orgkit/internal/organization/models"
	"orgkit/internal/organization/service"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/httputil"
	"orgkit/pkg/requestcontext"
)

// Service defines the organization operations the handler exposes.
type Service interface {
	CreateOrganization(ctx context.Context, actor id.UserID, name string) (*models.Organization, error)
	GetOrganization(ctx context.Context, actor id.UserID, orgID id.OrgID) (*models.Organization, error)
	RenameOrganization(ctx context.Context, actor id.UserID, orgID id.OrgID, newName string) error
	OrganizationsForUser(ctx context.Context, actor id.UserID) ([]models.UserOrganization, error)
	ListMembers(ctx context.Context, actor id.UserID, orgID id.OrgID) ([]models.MemberDetail, error)
	UpdateMemberRole(ctx context.Context, actor id.UserID, orgID id.OrgID, userID id.UserID, role id.Role) error
	RemoveMember(ctx context.Context, actor id.UserID, orgID id.OrgID, userID id.UserID) error
	EnsureInviteCode(ctx context.Context, actor id.UserID) (*models.InviteCode, error)
	SetInviteCodeEnabled(ctx context.Context, actor id.UserID, enabled bool) error
	JoinWithCode(ctx context.Context, actor id.UserID, orgID id.OrgID, code string) error
	GenerateAPIKey(ctx context.Context, actor id.UserID, orgID id.OrgID) (*service.GeneratedAPIKey, error)
	ListAPIKeys(ctx context.Context, actor id.UserID, orgID id.OrgID) ([]models.APIKey, error)
	RevokeAPIKey(ctx context.Context, actor id.UserID, orgID id.OrgID, keyID int64) error
	SystemSettings(ctx context.Context) (models.SystemSettings, error)
	UpdateSystemSettings(ctx context.Context, settings models.SystemSettings) error
}

// Handler serves the organization HTTP surface.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts authenticated organization endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/organisations", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleListMine)
		r.Route("/{orgID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleRename)
			r.Post("/join", h.HandleJoin)
			r.Get("/members", h.HandleListMembers)
			r.Put("/members/{userID}/role", h.HandleUpdateRole)
			r.Delete("/members/{userID}", h.HandleRemoveMember)
			r.Post("/api-keys", h.HandleGenerateAPIKey)
			r.Get("/api-keys", h.HandleListAPIKeys)
			r.Delete("/api-keys/{keyID}", h.HandleRevokeAPIKey)
		})
	})
	r.Route("/invite-code", func(r chi.Router) {
		r.Get("/", h.HandleInviteCode)
		r.Put("/", h.HandleSetInviteEnabled)
	})
}

// RegisterAdmin mounts system settings endpoints; the caller guards them with
// the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/settings", h.HandleGetSettings)
	r.Put("/settings", h.HandleUpdateSettings)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func orgIDParam(w http.ResponseWriter, r *http.Request) (id.OrgID, bool) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organisation id"))
		return 0, false
	}
	return orgID, true
}

func userIDParam(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return id.UserID{}, false
	}
	return userID, true
}

// HandleCreate handles POST /organisations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[CreateOrganizationRequest](w, r)
	if !ok {
		return
	}

	org, err := h.service.CreateOrganization(ctx, actor, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "organisation creation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", actor,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org)
}

// HandleListMine handles GET /organisations.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	orgs, err := h.service.OrganizationsForUser(ctx, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if orgs == nil {
		orgs = []models.UserOrganization{}
	}
	httputil.WriteJSON(w, http.StatusOK, orgs)
}

// HandleGet handles GET /organisations/{orgID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	org, err := h.service.GetOrganization(r.Context(), actor, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

// HandleRename handles PATCH /organisations/{orgID}.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[RenameOrganizationRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.RenameOrganization(ctx, actor, orgID, req.Name); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "renamed"})
}

// HandleJoin handles POST /organisations/{orgID}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[JoinRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.JoinWithCode(ctx, actor, orgID, req.Code); err != nil {
		h.logger.WarnContext(ctx, "join with invite code rejected",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", actor,
			"organisation_id", orgID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "joined"})
}

// HandleListMembers handles GET /organisations/{orgID}/members.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), actor, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if members == nil {
		members = []models.MemberDetail{}
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

// HandleUpdateRole handles PUT /organisations/{orgID}/members/{userID}/role.
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	memberID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[UpdateRoleRequest](w, r)
	if !ok {
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role"))
		return
	}

	if err := h.service.UpdateMemberRole(ctx, actor, orgID, memberID, role); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "updated"})
}

// HandleRemoveMember handles DELETE /organisations/{orgID}/members/{userID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	memberID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), actor, orgID, memberID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "removed"})
}

// HandleInviteCode handles GET /invite-code, creating the caller's code on
// first use.
func (h *Handler) HandleInviteCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	invite, err := h.service.EnsureInviteCode(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invite)
}

// HandleSetInviteEnabled handles PUT /invite-code.
func (h *Handler) HandleSetInviteEnabled(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SetInviteEnabledRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.SetInviteCodeEnabled(r.Context(), actor, req.Enabled); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "updated"})
}

// HandleGenerateAPIKey handles POST /organisations/{orgID}/api-keys. The raw
// key appears in this response only; afterwards only the hash survives.
func (h *Handler) HandleGenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	generated, err := h.service.GenerateAPIKey(ctx, actor, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "api key generated",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", actor,
		"organisation_id", orgID,
		"prefix", generated.Key.Prefix,
	)
	httputil.WriteJSON(w, http.StatusCreated, APIKeyResponse{
		ID:        generated.Key.ID,
		Prefix:    generated.Key.Prefix,
		Key:       generated.RawKey,
		CreatedAt: generated.Key.CreatedAt,
	})
}

// HandleListAPIKeys handles GET /organisations/{orgID}/api-keys.
func (h *Handler) HandleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	keys, err := h.service.ListAPIKeys(r.Context(), actor, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, APIKeyResponse{ID: key.ID, Prefix: key.Prefix, CreatedAt: key.CreatedAt})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevokeAPIKey handles DELETE /organisations/{orgID}/api-keys/{keyID}.
func (h *Handler) HandleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	keyID, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid api key id"))
		return
	}

	if err := h.service.RevokeAPIKey(r.Context(), actor, orgID, keyID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "revoked"})
}

// HandleGetSettings handles GET /settings on the admin surface.
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.SystemSettings(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /settings on the admin surface.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.SystemSettings](w, r)
	if !ok {
		return
	}

	if err := h.service.UpdateSystemSettings(ctx, req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "system settings updated",
		"request_id", requestcontext.RequestID(ctx),
		"organisation_limit", req.OrganizationLimit,
		"user_can_create_organisation", req.UserCanCreateOrg,
	)
	httputil.WriteJSON(w, http.StatusOK, req)
}
