// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes: payloads as-is, errors as {"error","error_description"}.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "orgkit/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode parses the request body into T, answering 400 on malformed JSON.
// The second return reports whether the handler should continue.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return req, false
	}
	return req, true
}

// WriteError translates a domain error into an HTTP response. Internal errors
// omit the description so infrastructure detail never reaches clients; all
// other codes echo their message for debuggability.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if msg := dErrors.MessageOf(err); msg != "" {
		body["error_description"] = msg
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
