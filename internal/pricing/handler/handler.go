// Package handler exposes the read-only pricing catalog.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"orgkit/internal/pricing"
	"orgkit/pkg/platform/httputil"
)

type Handler struct {
	catalog *pricing.Catalog
}

func New(catalog *pricing.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// Register mounts the public pricing endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/pricing", h.HandlePricing)
}

// PricingResponse is the public catalog shape.
type PricingResponse struct {
	Tiers          []pricing.Tier `json:"tiers"`
	CommonFeatures []string       `json:"common_features"`
}

// HandlePricing handles GET /pricing.
func (h *Handler) HandlePricing(w http.ResponseWriter, r *http.Request) {
	tiers := h.catalog.AllTiers()
	if tiers == nil {
		tiers = []pricing.Tier{}
	}
	features := h.catalog.CommonFeatures()
	if features == nil {
		features = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, PricingResponse{
		Tiers:          tiers,
		CommonFeatures: features,
	})
}
