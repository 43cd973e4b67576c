// Package httptransport assembles the HTTP surface: middleware stack, public
// endpoints, the authenticated API, and the token-guarded admin plane.
package httptransport

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	billinghandler "orgkit/internal/billing/handler"
	orghandler "orgkit/internal/organization/handler"
	redisplatform "orgkit/internal/platform/redis"
	pricinghandler "orgkit/internal/pricing/handler"
	webhookhandler "orgkit/internal/webhook/handler"
	"orgkit/pkg/platform/httputil"
	"orgkit/pkg/platform/middleware/accesslog"
	adminmw "orgkit/pkg/platform/middleware/admin"
	apikeymw "orgkit/pkg/platform/middleware/apikey"
	"orgkit/pkg/platform/middleware/auth"
	"orgkit/pkg/platform/middleware/metadata"
	"orgkit/pkg/platform/middleware/recovery"
	"orgkit/pkg/platform/middleware/requestid"
	"orgkit/pkg/platform/middleware/requesttime"
)

// Dependencies carries everything the router needs. DB and Redis may be nil
// when the deployment runs on in-memory stores; health reporting skips them.
type Dependencies struct {
	Logger *slog.Logger

	DB    *sql.DB
	Redis *redisplatform.Client

	Organizations *orghandler.Handler
	Billing       *billinghandler.Handler
	Webhooks      *webhookhandler.Handler
	Pricing       *pricinghandler.Handler

	TokenValidator auth.TokenValidator
	APIKeys        apikeymw.Verifier
	AdminToken     string
	AllowedOrigins []string
}

// NewRouter builds the full application router.
//
// Layout:
//
//	GET  /healthz              liveness + dependency health
//	GET  /metrics              Prometheus scrape endpoint
//	GET  /api/pricing          public tier catalog
//	POST /api/paddle/webhook   signature-verified, no bearer token
//	     /api/machine/...      organization-API-key machine endpoints
//	     /api/...              bearer-token API (organisations, billing)
//	     /admin/...            admin-token system settings
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(accesslog.Middleware(deps.Logger))
	r.Use(recovery.Middleware(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		deps.Pricing.Register(r)
		deps.Webhooks.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.TokenValidator, deps.Logger))
			deps.Organizations.Register(r)
			deps.Billing.Register(r)
		})

		r.Route("/machine/organisations/{orgID}", func(r chi.Router) {
			r.Use(apikeymw.RequireAPIKey(deps.APIKeys, deps.Logger))
			deps.Billing.RegisterMachine(r)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Organizations.RegisterAdmin(r)
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		resp := healthResponse{Status: "ok", Checks: checks}
		if !healthy {
			status = http.StatusServiceUnavailable
			resp.Status = "degraded"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
