package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const migrationsTable = "schema_migrations"

// migration is one named, ordered schema step for a force database.
type migration struct {
	Name string
	SQL  string
}

// The auth core owns only the tables it needs: users, user_intents, sessions.
// Business entities (officers, patrols, evaluations) live in their own
// migrations outside this core.
var migrations = []migration{
	{
		Name: "0001_users",
		SQL: `
			create table if not exists users (
				id               bigserial primary key,
				nif              bigint not null unique,
				password_hash    text,
				password_login   boolean not null default true,
				federated_login  boolean not null default false,
				federated_id     text unique,
				suspended        boolean not null default false,
				last_interaction timestamptz
			);`,
	},
	{
		Name: "0002_user_intents",
		SQL: `
			create table if not exists user_intents (
				user_id bigint not null references users(id) on delete cascade,
				intent  text not null,
				enabled boolean not null default false,
				primary key (user_id, intent)
			);`,
	},
	{
		Name: "0003_sessions",
		SQL: `
			create table if not exists sessions (
				token      text primary key,
				user_id    bigint not null references users(id) on delete cascade,
				persistent boolean not null default false,
				last_used  timestamptz not null
			);
			create index if not exists sessions_user_id_idx on sessions(user_id);
			create index if not exists sessions_last_used_idx on sessions(last_used);`,
	},
}

// Manager applies the auth schema to one force's database.
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Up applies all pending migrations in order, recording each in the
// bookkeeping table so reruns are no-ops.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.listApplied(ctx)
	if err != nil {
		return err
	}
	for _, mig := range migrations {
		if applied[mig.Name] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
	}
	return nil
}

// Status returns applied migration names in order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at asc`, migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		);`, migrationsTable))
	return err
}

func (m *Manager) listApplied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (m *Manager) apply(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, migrationsTable),
		mig.Name, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}
