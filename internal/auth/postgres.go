package auth

import (
	"context"
	"database/sql"
	"time"
)

var (
	_ CredentialStore = (*PGCredentialStore)(nil)
	_ SessionStore    = (*PGSessionStore)(nil)
)

// PGCredentialStore implements CredentialStore over one force's database.
type PGCredentialStore struct {
	db *sql.DB
}

func NewPGCredentialStore(db *sql.DB) *PGCredentialStore {
	return &PGCredentialStore{db: db}
}

const identityColumns = `id, nif, password_hash, password_login, federated_login, federated_id, suspended, last_interaction`

func scanIdentity(row *sql.Row) (*Identity, error) {
	var (
		ident       Identity
		hash        sql.NullString
		federatedID sql.NullString
		lastSeen    sql.NullTime
	)
	err := row.Scan(&ident.ID, &ident.NIF, &hash, &ident.PasswordLogin,
		&ident.FederatedLogin, &federatedID, &ident.Suspended, &lastSeen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if hash.Valid {
		ident.PasswordHash = &hash.String
	}
	if federatedID.Valid {
		ident.FederatedID = &federatedID.String
	}
	if lastSeen.Valid {
		ident.LastInteraction = &lastSeen.Time
	}
	return &ident, nil
}

func (s *PGCredentialStore) FindByID(ctx context.Context, id int64) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where id=$1`, id))
}

func (s *PGCredentialStore) FindByNIF(ctx context.Context, nif int64) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where nif=$1`, nif))
}

func (s *PGCredentialStore) FindByFederatedID(ctx context.Context, externalID string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where federated_id=$1`, externalID))
}

func (s *PGCredentialStore) LinkFederatedID(ctx context.Context, identityID int64, externalID string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set federated_id=$1 where id=$2`, externalID, identityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGCredentialStore) UpdatePasswordHash(ctx context.Context, identityID int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$1 where id=$2`, hash, identityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGCredentialStore) TouchInteraction(ctx context.Context, identityID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_interaction=$1 where id=$2`, at.UTC(), identityID)
	return err
}

func (s *PGCredentialStore) Intents(ctx context.Context, identityID int64) (IntentSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`select intent, enabled from user_intents where user_id=$1`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(IntentSet)
	for rows.Next() {
		var (
			name    string
			enabled bool
		)
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, err
		}
		set[name] = enabled
	}
	return set, rows.Err()
}

func (s *PGCredentialStore) SetIntent(ctx context.Context, identityID int64, intent string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_intents(user_id, intent, enabled) values($1,$2,$3)
		 on conflict (user_id, intent) do update set enabled=excluded.enabled`,
		identityID, intent, enabled)
	return err
}

// PGSessionStore implements SessionStore over one force's database.
type PGSessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGSessionStore(db *sql.DB) *PGSessionStore {
	return &PGSessionStore{db: db, now: time.Now}
}

// Create mints a fresh token and inserts it. A collision with a live token
// leaves the insert without effect, in which case a new token is drawn; the
// loop is bounded so a broken entropy source or a full table fails loudly
// instead of spinning.
func (s *PGSessionStore) Create(ctx context.Context, identityID int64, persistent bool) (*Session, error) {
	for attempt := 0; attempt < tokenRetryBudget; attempt++ {
		token, err := NewToken()
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		res, err := s.db.ExecContext(ctx,
			`insert into sessions(token, user_id, persistent, last_used) values($1,$2,$3,$4)
			 on conflict (token) do nothing`,
			token, identityID, persistent, now)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return &Session{Token: token, IdentityID: identityID, Persistent: persistent, LastUsed: now}, nil
		}
	}
	return nil, ErrBackendUnavailable
}

func (s *PGSessionStore) Lookup(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select token, user_id, persistent, last_used from sessions where token=$1`, token)
	var sess Session
	if err := row.Scan(&sess.Token, &sess.IdentityID, &sess.Persistent, &sess.LastUsed); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Touch refreshes last_used. Concurrent touches of the same token race
// last-write-wins, which is fine: expiry only needs "recent enough".
func (s *PGSessionStore) Touch(ctx context.Context, token string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set last_used=$1 where token=$2 and last_used < $1`, at.UTC(), token)
	return err
}

func (s *PGSessionStore) Revoke(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	return err
}

func (s *PGSessionStore) RevokeAllForIdentity(ctx context.Context, identityID int64) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where user_id=$1`, identityID)
	return err
}

func (s *PGSessionStore) RevokeOthers(ctx context.Context, identityID int64, keepToken string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from sessions where user_id=$1 and token <> $2`, identityID, keepToken)
	return err
}

func (s *PGSessionStore) DeleteExpired(ctx context.Context, now time.Time, idleTTL, persistentTTL time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from sessions where
		 (not persistent and last_used < $1) or
		 (persistent and last_used < $2)`,
		now.UTC().Add(-idleTTL), now.UTC().Add(-persistentTTL))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
