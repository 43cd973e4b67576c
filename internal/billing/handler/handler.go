// Package handler wires billing endpoints to the billing service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orgkit/internal/billing/service"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/httputil"
	"orgkit/pkg/requestcontext"
)

// Service defines the billing operations the handler exposes.
type Service interface {
	SetBillingAdmin(ctx context.Context, actor id.UserID, orgID id.OrgID, email string) error
	BillingAdmin(ctx context.Context, actor id.UserID, orgID id.OrgID) (string, error)
	SubscriptionStatus(ctx context.Context, actor id.UserID, orgID id.OrgID) (*service.SubscriptionSummary, error)
	SubscriptionStatusForOrg(ctx context.Context, orgID id.OrgID) (*service.SubscriptionSummary, error)
	CustomerPortalSession(ctx context.Context, orgID id.OrgID) (string, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts billing endpoints on the authenticated API router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/customer-portal", h.HandlePortalSession)
	r.Route("/organisations/{orgID}/billing", func(r chi.Router) {
		r.Get("/admin", h.HandleGetBillingAdmin)
		r.Put("/admin", h.HandleSetBillingAdmin)
		r.Get("/subscription", h.HandleSubscriptionStatus)
	})
}

// RegisterMachine mounts the API-key-authenticated machine endpoints; the
// caller guards them with the organization API key middleware.
func (h *Handler) RegisterMachine(r chi.Router) {
	r.Get("/subscription", h.HandleMachineSubscriptionStatus)
}

// SetBillingAdminRequest is the body for PUT .../billing/admin.
type SetBillingAdminRequest struct {
	Email string `json:"email"`
}

// BillingAdminResponse carries the billing contact email.
type BillingAdminResponse struct {
	Email string `json:"email"`
}

// PortalSessionResponse carries the portal URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
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

// HandlePortalSession handles GET /customer-portal?orgId=N.
func (h *Handler) HandlePortalSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.actor(w, r); !ok {
		return
	}

	raw := r.URL.Query().Get("orgId")
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "orgId query parameter required"))
		return
	}
	orgID, err := id.ParseOrgID(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid orgId"))
		return
	}

	url, err := h.service.CustomerPortalSession(ctx, orgID)
	if err != nil {
		h.logger.WarnContext(ctx, "customer portal request failed",
			"request_id", requestcontext.RequestID(ctx),
			"organisation_id", orgID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PortalSessionResponse{URL: url})
}

// HandleGetBillingAdmin handles GET .../billing/admin.
func (h *Handler) HandleGetBillingAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	email, err := h.service.BillingAdmin(r.Context(), actor, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BillingAdminResponse{Email: email})
}

// HandleSetBillingAdmin handles PUT .../billing/admin.
func (h *Handler) HandleSetBillingAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SetBillingAdminRequest](w, r)
	if !ok {
		return
	}

	if err := h.service.SetBillingAdmin(ctx, actor, orgID, req.Email); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BillingAdminResponse{Email: req.Email})
}

// HandleSubscriptionStatus handles GET .../billing/subscription.
func (h *Handler) HandleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.service.SubscriptionStatus(r.Context(), actor, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleMachineSubscriptionStatus handles GET /machine/organisations/{orgID}/subscription.
// The API key middleware has already authenticated the caller for this org.
func (h *Handler) HandleMachineSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.service.SubscriptionStatusForOrg(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
