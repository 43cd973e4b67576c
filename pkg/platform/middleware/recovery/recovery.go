// Package recovery turns handler panics into 500 responses instead of
// dropped connections.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/httputil"
	"orgkit/pkg/requestcontext"
)

func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger.ErrorContext(ctx, "panic recovered",
						"panic", rec,
						"request_id", requestcontext.RequestID(ctx),
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
