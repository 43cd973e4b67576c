// Package requesttime captures a single "now" per request so audit rows,
// domain timestamps, and expiry checks within one request agree.
package requesttime

import (
	"net/http"
	"time"

	"orgkit/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
