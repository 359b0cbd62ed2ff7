package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"esquadra.org/internal/auth"
	"esquadra.org/internal/obs"
	"esquadra.org/internal/tenant"
)

type successEnvelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

type failureEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, message string, data, meta any) {
	writeJSON(w, code, successEnvelope{Message: message, Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, failureEnvelope{Message: message})
}

// writeFault maps the auth fault taxonomy onto status codes:
// missing/invalid token and bad credentials 401, wrong force / insufficient
// permission / suspended 403, unknown force and malformed input 400, backend
// faults 500. Messages are user-facing and passed through verbatim.
func writeFault(w http.ResponseWriter, err error) {
	var status int
	var code, message string

	switch {
	case errors.Is(err, tenant.ErrUnknownForce):
		status, code, message = http.StatusBadRequest, "unknown_force", "unknown force"
	case errors.Is(err, auth.ErrMissingToken):
		status, code, message = http.StatusUnauthorized, "missing_token", "authentication token is required"
	case errors.Is(err, auth.ErrInvalidToken):
		status, code, message = http.StatusUnauthorized, "invalid_token", "invalid or expired token"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code, message = http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, auth.ErrWrongForce):
		status, code, message = http.StatusForbidden, "wrong_force", "token is not valid for this force"
	case errors.Is(err, auth.ErrAccountSuspended):
		status, code, message = http.StatusForbidden, "account_suspended", "account is suspended"
	case errors.Is(err, auth.ErrInsufficientPermission):
		status, code, message = http.StatusForbidden, "insufficient_permission", "insufficient permission"
	case errors.Is(err, auth.ErrPasswordMismatch):
		status, code, message = http.StatusBadRequest, "password_mismatch", "password confirmation does not match"
	case errors.Is(err, auth.ErrWrongOldPassword):
		status, code, message = http.StatusForbidden, "wrong_old_password", "old password is incorrect"
	case errors.Is(err, auth.ErrBackendTimeout):
		status, code, message = http.StatusInternalServerError, "backend_timeout", "temporary backend failure"
	case errors.Is(err, auth.ErrBackendUnavailable):
		status, code, message = http.StatusInternalServerError, "backend_unavailable", "temporary backend failure"
	default:
		status, code, message = http.StatusInternalServerError, "internal", "internal error"
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		obs.GuardDenial(code)
	}

	env := failureEnvelope{Message: message, Code: code}
	if errors.Is(err, auth.ErrInsufficientPermission) {
		// Name the first missing intent for diagnostics.
		if idx := strings.LastIndex(err.Error(), ": "); idx >= 0 {
			env.Details = err.Error()[idx+2:]
		}
	}
	writeJSON(w, status, env)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
