package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"esquadra.org/internal/auth"
)

// ErrUnknownForce indicates the request named a force not present in the
// static configuration.
var ErrUnknownForce = errors.New("tenant: unknown force")

// Force is one registered force with its pooled database connection. The pool
// is the only shared mutable resource in the core: it is owned here and handed
// out per request, never held beyond a request's lifetime.
type Force struct {
	Key         string
	Name        string
	DB          *sql.DB
	Credentials auth.CredentialStore
	Sessions    auth.SessionStore
}

// Registry resolves force keys to their backing stores. It implements
// auth.ForceResolver.
type Registry struct {
	forces map[string]*Force
	keys   []string
}

var _ auth.ForceResolver = (*Registry)(nil)

// Open builds the registry from configuration, one connection pool per force.
// Pool limits provide backpressure: when a pool is exhausted, acquisition
// blocks until the request's deadline instead of queueing without bound.
func Open(cfg *Config) (*Registry, error) {
	r := &Registry{forces: make(map[string]*Force, len(cfg.Forces))}
	for _, fc := range cfg.Forces {
		db, err := sql.Open("pgx", fc.DSN)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open pool for force %q: %w", fc.Key, err)
		}
		db.SetMaxOpenConns(fc.MaxOpenConns)
		db.SetMaxIdleConns(fc.MaxIdleConns)
		db.SetConnMaxLifetime(time.Duration(fc.ConnMaxLifetime))

		r.forces[fc.Key] = &Force{
			Key:         fc.Key,
			Name:        fc.Name,
			DB:          db,
			Credentials: auth.NewPGCredentialStore(db),
			Sessions:    auth.NewPGSessionStore(db),
		}
		r.keys = append(r.keys, fc.Key)
	}
	sort.Strings(r.keys)
	return r, nil
}

// NewStatic builds a registry over pre-built store handles. Used by tests and
// by tools that bring their own stores.
func NewStatic(forces map[string]auth.ForceContext) *Registry {
	r := &Registry{forces: make(map[string]*Force, len(forces))}
	for key, fc := range forces {
		r.forces[key] = &Force{Key: key, Credentials: fc.Credentials, Sessions: fc.Sessions}
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
	return r
}

// Resolve returns the store handles for one force, or ErrUnknownForce. An
// empty key is equally unknown: every request must declare its force.
func (r *Registry) Resolve(key string) (auth.ForceContext, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	f, ok := r.forces[key]
	if !ok {
		return auth.ForceContext{}, ErrUnknownForce
	}
	return auth.ForceContext{Key: f.Key, Credentials: f.Credentials, Sessions: f.Sessions}, nil
}

// Keys lists registered force keys in stable order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Ping checks every force's database, for the readiness probe.
func (r *Registry) Ping(ctx context.Context) error {
	for _, key := range r.keys {
		f := r.forces[key]
		if f.DB == nil {
			continue
		}
		if err := f.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("force %q: %w", key, err)
		}
	}
	return nil
}

// Close releases every pool.
func (r *Registry) Close() error {
	var firstErr error
	for _, f := range r.forces {
		if f.DB == nil {
			continue
		}
		if err := f.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
