package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"esquadra.org/internal/audit"
	"esquadra.org/internal/auth"
)

type setIntentRequest struct {
	Enabled bool `json:"enabled"`
}

// handleIntentCatalog lists the registered intent names. Privileged: the
// catalog drives administrative UIs.
func (a *API) handleIntentCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := a.authorize(w, r, auth.IntentIntentsManage); !ok {
		return
	}
	catalog := auth.RegisteredIntents()
	sort.Strings(catalog)
	writeSuccess(w, http.StatusOK, "registered intents", catalog, nil)
}

// handleIdentityScoped routes /v1/identities/{nif}/intents[/{intent}].
// Intent grants are mutated through the guard's own gate: the caller needs
// the intents.manage intent.
func (a *API) handleIdentityScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/identities/"), "/")
	if path == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	nif, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "identity key must be numeric")
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "intents":
		a.handleIdentityIntents(w, r, nif)
	case len(parts) == 3 && parts[1] == "intents":
		a.handleIdentityIntent(w, r, nif, parts[2])
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleIdentityIntents(w http.ResponseWriter, r *http.Request, nif int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := a.authorize(w, r, auth.IntentIntentsManage); !ok {
		return
	}
	force := requestForce(r)
	ident, err := a.auth.Identity(r.Context(), force, nif)
	if err != nil {
		writeIdentityFault(w, err)
		return
	}
	grants, err := a.auth.IdentityIntents(r.Context(), force, ident.ID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "identity intents", grants, map[string]any{"nif": nif})
}

func (a *API) handleIdentityIntent(w http.ResponseWriter, r *http.Request, nif int64, intent string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}
	actorID, ok := a.authorize(w, r, auth.IntentIntentsManage)
	if !ok {
		return
	}
	if !auth.ValidIntent(intent) {
		writeError(w, http.StatusBadRequest, "unregistered intent")
		return
	}

	var req setIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	force := requestForce(r)
	ident, err := a.auth.Identity(r.Context(), force, nif)
	if err != nil {
		writeIdentityFault(w, err)
		return
	}
	if err := a.auth.SetIdentityIntent(r.Context(), force, ident.ID, intent, req.Enabled); err != nil {
		writeFault(w, err)
		return
	}

	ctx := auth.ContextWithIdentity(auth.ContextWithForce(r.Context(), force), actorID)
	_ = audit.LogEvent(ctx, "auth.intent.set", map[string]any{
		"target_nif": nif,
		"intent":     intent,
		"enabled":    req.Enabled,
	})
	writeSuccess(w, http.StatusOK, "intent updated", nil, nil)
}

// writeIdentityFault maps a missing target identity to 404 instead of the
// guard taxonomy.
func writeIdentityFault(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, http.StatusNotFound, "identity not found")
		return
	}
	writeFault(w, err)
}
