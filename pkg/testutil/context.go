package testutil

import (
	"net/http"
	"time"

	id "orgkit/pkg/domain"
	"orgkit/pkg/requestcontext"
)

// WithUser simulates the auth middleware: it injects the caller's user ID and
// email into the request context.
func WithUser(req *http.Request, userID id.UserID, email string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithUserEmail(ctx, email)
	return req.WithContext(ctx)
}

// WithFixedTime pins the request-scoped clock for deterministic timestamps.
func WithFixedTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
