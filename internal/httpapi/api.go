package httpapi

import (
	"context"
	"net/http"
	"time"

	"esquadra.org/internal/auth"
	"esquadra.org/internal/obs"
)

// ReadyProbe checks backing stores for the readiness endpoint.
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// API is the HTTP layer over the auth core.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	forces     auth.ForceResolver
	readyProbe ReadyProbe
	version    string
}

func New(svc *auth.Service, forces auth.ForceResolver, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		forces:     forces,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/change-password", a.handleChangePassword)
	a.mux.HandleFunc("/v1/auth/validate", a.handleValidate)
	a.mux.HandleFunc("/v1/intents", a.handleIntentCatalog)
	a.mux.HandleFunc("/v1/identities/", a.handleIdentityScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "esquadra-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "esquadra-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
		"forces":  a.forces.Keys(),
	})
}
