package auth

import (
	"context"
	"time"
)

// CredentialStore manages identities and their intent grants for one force.
// Identities are created out of band by administrative onboarding; this core
// only reads them and mutates password hashes, federation links and grants.
type CredentialStore interface {
	FindByID(ctx context.Context, id int64) (*Identity, error)
	FindByNIF(ctx context.Context, nif int64) (*Identity, error)
	FindByFederatedID(ctx context.Context, externalID string) (*Identity, error)
	LinkFederatedID(ctx context.Context, identityID int64, externalID string) error
	UpdatePasswordHash(ctx context.Context, identityID int64, hash string) error
	TouchInteraction(ctx context.Context, identityID int64, at time.Time) error
	Intents(ctx context.Context, identityID int64) (IntentSet, error)
	SetIntent(ctx context.Context, identityID int64, intent string, enabled bool) error
}

// SessionStore manages bearer sessions for one force. Create mints the token
// itself so the collision check and the insert live on the same round trip.
type SessionStore interface {
	Create(ctx context.Context, identityID int64, persistent bool) (*Session, error)
	Lookup(ctx context.Context, token string) (*Session, error)
	Touch(ctx context.Context, token string, at time.Time) error
	Revoke(ctx context.Context, token string) error
	RevokeAllForIdentity(ctx context.Context, identityID int64) error
	RevokeOthers(ctx context.Context, identityID int64, keepToken string) error
	DeleteExpired(ctx context.Context, now time.Time, idleTTL, persistentTTL time.Duration) (int64, error)
}
