package httpapi

import (
	"net/http"

	"esquadra.org/internal/audit"
	"esquadra.org/internal/auth"
	"esquadra.org/internal/obs"
)

type loginRequest struct {
	NIF           *int64 `json:"nif,omitempty"`
	Password      string `json:"password,omitempty"`
	Persistent    bool   `json:"persistent,omitempty"`
	FederatedCode string `json:"federated_code,omitempty"`
}

type loginData struct {
	Token  string   `json:"token"`
	Forces []string `json:"forces"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	force := requestForce(r)
	if force == "" {
		writeError(w, http.StatusBadRequest, "force header is required")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		creds  auth.Credentials
		method string
	)
	switch {
	case req.FederatedCode != "":
		if req.NIF != nil || req.Password != "" {
			writeError(w, http.StatusBadRequest, "provide either credentials or a federated code, not both")
			return
		}
		creds = auth.FederatedCredentials{Code: req.FederatedCode}
		method = "federated"
	case req.NIF != nil && req.Password != "":
		creds = auth.PasswordCredentials{NIF: *req.NIF, Password: req.Password}
		method = "password"
	default:
		writeError(w, http.StatusBadRequest, "nif and password, or a federated code, are required")
		return
	}

	ctx := auth.ContextWithForce(r.Context(), force)
	result, err := a.auth.Login(ctx, force, creds, req.Persistent)
	if err != nil {
		_ = audit.LogEvent(ctx, "auth.login.denied", map[string]any{
			"method": method,
		})
		a.recordLogin(force, method, "denied")
		writeFault(w, err)
		return
	}

	ctx = auth.ContextWithIdentity(ctx, result.IdentityID)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{
		"method":     method,
		"persistent": req.Persistent,
		"forces":     result.Forces,
	})
	a.recordLogin(force, method, "success")

	writeSuccess(w, http.StatusOK, "login successful", loginData{
		Token:  result.Token,
		Forces: result.Forces,
	}, nil)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	force := requestForce(r)
	if force == "" {
		writeError(w, http.StatusBadRequest, "force header is required")
		return
	}
	if err := a.auth.Logout(r.Context(), force, bearerToken(r)); err != nil {
		writeFault(w, err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithForce(r.Context(), force), "auth.logout", nil)
	writeSuccess(w, http.StatusOK, "logged out", nil, nil)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	force := requestForce(r)
	if force == "" {
		writeError(w, http.StatusBadRequest, "force header is required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old and new passwords are required")
		return
	}

	token := bearerToken(r)
	if err := a.auth.ChangePassword(r.Context(), force, token, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeFault(w, err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithForce(r.Context(), force), "auth.password.changed", nil)
	writeSuccess(w, http.StatusOK, "password changed; other sessions revoked", nil, nil)
}

// handleValidate runs the guard with no required intents and returns the
// resolved identity id, for collaborators that only need "who is this".
func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	identityID, ok := a.authorize(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "token valid", identityID, nil)
}

// recordLogin keeps label cardinality bounded: force keys come from static
// configuration.
func (a *API) recordLogin(force, method, outcome string) {
	obs.LoginAttempt(force, method, outcome)
}
