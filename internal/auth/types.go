package auth

import "time"

// Identity represents one officer account inside a single force's credential
// store. The same natural person holding accounts in several forces is modeled
// as independent Identity records, one per force.
type Identity struct {
	ID              int64
	NIF             int64
	PasswordHash    *string
	PasswordLogin   bool
	FederatedLogin  bool
	FederatedID     *string
	Suspended       bool
	LastInteraction *time.Time
}

// Session is an opaque bearer credential proving a prior login. It is bound to
// exactly one identity in exactly one force; anyone holding the token has the
// issuing identity's access.
type Session struct {
	Token      string
	IdentityID int64
	Persistent bool
	LastUsed   time.Time
}

// Idle-expiry windows enforced by the sweeper. Persistent sessions are opted
// into at login time.
const (
	SessionIdleTTL    = 2 * time.Hour
	PersistentIdleTTL = 7 * 24 * time.Hour
)

// ForceContext bundles the per-force store handles handed out by the tenant
// registry for the duration of one request.
type ForceContext struct {
	Key         string
	Credentials CredentialStore
	Sessions    SessionStore
}

// ForceResolver maps an inbound force key to that force's backing stores.
// Implemented by the tenant registry.
type ForceResolver interface {
	Resolve(key string) (ForceContext, error)
	Keys() []string
}
