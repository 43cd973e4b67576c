// Package apikey authenticates machine integrations presenting an
// organization API key. The key is scoped to the organization in the route.
package apikey

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "orgkit/pkg/domain"
	"orgkit/pkg/requestcontext"
)

// Header carries the raw organization API key.
const Header = "X-API-Key"

// Verifier checks a presented raw key against an organization's stored keys.
type Verifier interface {
	VerifyAPIKey(ctx context.Context, orgID id.OrgID, rawKey string) (bool, error)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAPIKey rejects requests whose X-API-Key header does not match one of
// the route organization's keys.
func RequireAPIKey(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid organisation id")
				return
			}

			rawKey := r.Header.Get(Header)
			if rawKey == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}

			ok, err := verifier.VerifyAPIKey(ctx, orgID, rawKey)
			if err != nil {
				logger.ErrorContext(ctx, "api key verification failed",
					"organisation_id", orgID,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "API key verification failed")
				return
			}
			if !ok {
				logger.WarnContext(ctx, "rejected invalid api key",
					"organisation_id", orgID,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
