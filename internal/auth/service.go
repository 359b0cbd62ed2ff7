package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"esquadra.org/internal/obs"
)

const defaultOpTimeout = 3 * time.Second

// Service is the authentication core: it validates credentials against a
// force's credential store, mints sessions, and guards protected requests.
type Service struct {
	forces    ForceResolver
	provider  FederatedProvider
	now       func() time.Time
	opTimeout time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithFederatedProvider enables federated-code login.
func WithFederatedProvider(p FederatedProvider) ServiceOption {
	return func(s *Service) error {
		s.provider = p
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithOpTimeout bounds every datastore round trip made by the service.
func WithOpTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.opTimeout = d
		}
		return nil
	}
}

// NewService constructs the authentication core over a force resolver.
func NewService(forces ForceResolver, opts ...ServiceOption) (*Service, error) {
	if forces == nil {
		return nil, errors.New("force resolver is required")
	}
	svc := &Service{
		forces:    forces,
		now:       time.Now,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// do runs one datastore operation with a per-attempt timeout. Backend faults
// get a single retry before being surfaced; authorization faults never retry.
func (s *Service) do(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err = op(opCtx)
		cancel()
		if err == nil || !isBackendFault(err) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		obs.Logger().Warn("auth backend timeout", zap.Error(err))
		return ErrBackendTimeout
	}
	obs.Logger().Warn("auth backend unavailable", zap.Error(err))
	return ErrBackendUnavailable
}

func isBackendFault(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBackendUnavailable)
}

// Credentials is one supported login method. The set is closed: password and
// federated code are the only variants.
type Credentials interface {
	authenticate(ctx context.Context, s *Service, fc ForceContext) (*Identity, error)
}

// PasswordCredentials authenticates by NIF and password.
type PasswordCredentials struct {
	NIF      int64
	Password string
}

// FederatedCredentials authenticates by a one-time code issued by the external
// identity provider.
type FederatedCredentials struct {
	Code string
}

func (p PasswordCredentials) authenticate(ctx context.Context, s *Service, fc ForceContext) (*Identity, error) {
	var ident *Identity
	err := s.do(ctx, func(c context.Context) error {
		var e error
		ident, e = fc.Credentials.FindByNIF(c, p.NIF)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		// Unknown identity is indistinguishable from a bad password.
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	// A nil hash or disabled password login fails closed.
	if !ident.PasswordLogin || ident.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := VerifyPassword(*ident.PasswordHash, p.Password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return ident, nil
}

func (f FederatedCredentials) authenticate(ctx context.Context, s *Service, fc ForceContext) (*Identity, error) {
	if s.provider == nil {
		return nil, ErrInvalidCredentials
	}
	subject, err := s.provider.Exchange(ctx, f.Code)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var ident *Identity
	err = s.do(ctx, func(c context.Context) error {
		var e error
		ident, e = fc.Credentials.FindByFederatedID(c, subject.ExternalID)
		return e
	})
	if err == nil {
		if !ident.FederatedLogin {
			return nil, ErrInvalidCredentials
		}
		return ident, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// First federated login: locate the identity by the NIF claim and persist
	// the mapping for subsequent logins.
	err = s.do(ctx, func(c context.Context) error {
		var e error
		ident, e = fc.Credentials.FindByNIF(c, subject.NIF)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !ident.FederatedLogin {
		return nil, ErrInvalidCredentials
	}
	if err := s.do(ctx, func(c context.Context) error {
		return fc.Credentials.LinkFederatedID(c, ident.ID, subject.ExternalID)
	}); err != nil {
		return nil, err
	}
	linked := subject.ExternalID
	ident.FederatedID = &linked
	return ident, nil
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token      string
	IdentityID int64
	Forces     []string
}

// Login authenticates credentials against one force and mints a brand-new
// session. Existing sessions for the identity are left alone: a user may be
// logged in on several devices at once.
func (s *Service) Login(ctx context.Context, forceKey string, creds Credentials, persistent bool) (*LoginResult, error) {
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return nil, err
	}
	ident, err := creds.authenticate(ctx, s, fc)
	if err != nil {
		return nil, err
	}
	if ident.Suspended {
		return nil, ErrAccountSuspended
	}

	var sess *Session
	if err := s.do(ctx, func(c context.Context) error {
		var e error
		sess, e = fc.Sessions.Create(c, ident.ID, persistent)
		return e
	}); err != nil {
		return nil, err
	}
	if err := s.do(ctx, func(c context.Context) error {
		return fc.Credentials.TouchInteraction(c, ident.ID, s.now().UTC())
	}); err != nil {
		obs.Logger().Warn("login interaction update failed",
			zap.String("force", fc.Key), zap.Error(err))
	}

	return &LoginResult{
		Token:      sess.Token,
		IdentityID: ident.ID,
		Forces:     s.memberForces(ctx, ident.NIF),
	}, nil
}

// memberForces lists every force the NIF is registered in. A force whose store
// is unreachable is skipped; the login itself already succeeded.
func (s *Service) memberForces(ctx context.Context, nif int64) []string {
	var forces []string
	for _, key := range s.forces.Keys() {
		fc, err := s.forces.Resolve(key)
		if err != nil {
			continue
		}
		err = s.do(ctx, func(c context.Context) error {
			_, e := fc.Credentials.FindByNIF(c, nif)
			return e
		})
		if err == nil {
			forces = append(forces, key)
		}
	}
	return forces
}

// ChangePassword rehashes the password and revokes every other live session
// for the identity. The session performing the change is preserved; the
// revocation completes before this call returns, so no stale session remains
// valid once the caller sees success.
func (s *Service) ChangePassword(ctx context.Context, forceKey, token, oldPassword, newPassword, confirm string) error {
	if newPassword == "" || newPassword != confirm {
		return ErrPasswordMismatch
	}
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return err
	}

	var sess *Session
	err = s.do(ctx, func(c context.Context) error {
		var e error
		sess, e = fc.Sessions.Lookup(c, token)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	var ident *Identity
	err = s.do(ctx, func(c context.Context) error {
		var e error
		ident, e = fc.Credentials.FindByID(c, sess.IdentityID)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if ident.Suspended {
		return ErrAccountSuspended
	}
	if ident.PasswordHash == nil {
		return ErrWrongOldPassword
	}
	ok, err := VerifyPassword(*ident.PasswordHash, oldPassword)
	if err != nil || !ok {
		return ErrWrongOldPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.do(ctx, func(c context.Context) error {
		return fc.Credentials.UpdatePasswordHash(c, ident.ID, hash)
	}); err != nil {
		return err
	}
	return s.do(ctx, func(c context.Context) error {
		return fc.Sessions.RevokeOthers(c, ident.ID, token)
	})
}

// Logout revokes the one presented session. Revoking an already-gone token is
// a no-op.
func (s *Service) Logout(ctx context.Context, forceKey, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return err
	}
	return s.do(ctx, func(c context.Context) error {
		return fc.Sessions.Revoke(c, token)
	})
}

// Identity loads an identity by business key within one force, for callers
// that already passed the guard.
func (s *Service) Identity(ctx context.Context, forceKey string, nif int64) (*Identity, error) {
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return nil, err
	}
	var ident *Identity
	err = s.do(ctx, func(c context.Context) error {
		var e error
		ident, e = fc.Credentials.FindByNIF(c, nif)
		return e
	})
	if err != nil {
		return nil, err
	}
	return ident, nil
}

// IdentityIntents returns the sparse grant set for an identity.
func (s *Service) IdentityIntents(ctx context.Context, forceKey string, identityID int64) (IntentSet, error) {
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return nil, err
	}
	var set IntentSet
	err = s.do(ctx, func(c context.Context) error {
		var e error
		set, e = fc.Credentials.Intents(c, identityID)
		return e
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// SetIdentityIntent grants or revokes one intent. The name must belong to the
// registered catalog.
func (s *Service) SetIdentityIntent(ctx context.Context, forceKey string, identityID int64, intent string, enabled bool) error {
	if !ValidIntent(intent) {
		return fmt.Errorf("unregistered intent %q", intent)
	}
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return err
	}
	return s.do(ctx, func(c context.Context) error {
		return fc.Credentials.SetIntent(c, identityID, intent, enabled)
	})
}
