// Package requestid assigns a correlation ID to every request, honoring an
// inbound X-Request-Id when the caller supplies one.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"orgkit/pkg/requestcontext"
)

const Header = "X-Request-Id"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
