package httpapi

import (
	"net/http"
	"strings"
)

const (
	authHeader  = "Authorization"
	bearer      = "Bearer "
	forceHeader = "X-Force"
)

// requestForce returns the force key declared on the request. Required on
// every call, login included: the router must know which store to hit.
func requestForce(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(forceHeader))
}

// bearerToken extracts the token from the Authorization header. An absent or
// malformed header reads as "no token" so the guard reports the missing-token
// fault.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

// authorize runs the guard for one request and writes the fault on denial.
// Returns the identity id and whether the request may proceed.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, requiredIntents ...string) (int64, bool) {
	force := requestForce(r)
	if force == "" {
		writeError(w, http.StatusBadRequest, "force header is required")
		return 0, false
	}
	identityID, err := a.auth.Authorize(r.Context(), force, bearerToken(r), requiredIntents...)
	if err != nil {
		writeFault(w, err)
		return 0, false
	}
	return identityID, true
}
