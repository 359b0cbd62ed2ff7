package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"esquadra.org/internal/obs"
)

// Authorize is the single chokepoint every protected request passes through.
// Checks run in order and short-circuit on the first failure:
//
//  1. absent token                                  -> ErrMissingToken
//  2. no session under the token in this force      -> ErrInvalidToken
//     (expired-and-swept and never-existed are deliberately indistinguishable)
//  3. session live in a different force             -> ErrWrongForce
//  4. owning identity suspended                     -> ErrAccountSuspended
//  5. a required intent not explicitly granted      -> ErrInsufficientPermission,
//     naming the first missing intent
//
// On success the session's last_used and the identity's last_interaction are
// refreshed and the identity id is returned for downstream use.
func (s *Service) Authorize(ctx context.Context, forceKey, token string, requiredIntents ...string) (int64, error) {
	if strings.TrimSpace(token) == "" {
		return 0, ErrMissingToken
	}
	fc, err := s.forces.Resolve(forceKey)
	if err != nil {
		return 0, err
	}

	var sess *Session
	err = s.do(ctx, func(c context.Context) error {
		var e error
		sess, e = fc.Sessions.Lookup(c, token)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		if s.tokenKnownElsewhere(ctx, fc.Key, token) {
			return 0, ErrWrongForce
		}
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, err
	}

	var ident *Identity
	err = s.do(ctx, func(c context.Context) error {
		var e error
		ident, e = fc.Credentials.FindByID(c, sess.IdentityID)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		// Identity removal cascades to its sessions; the lookup raced the
		// cascade, so the token is simply gone.
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, err
	}
	if ident.Suspended {
		return 0, ErrAccountSuspended
	}

	if len(requiredIntents) > 0 {
		for _, name := range requiredIntents {
			if !ValidIntent(name) {
				return 0, fmt.Errorf("unregistered intent %q in requirement", name)
			}
		}
		var grants IntentSet
		err = s.do(ctx, func(c context.Context) error {
			var e error
			grants, e = fc.Credentials.Intents(c, ident.ID)
			return e
		})
		if err != nil {
			return 0, err
		}
		if name, missing := grants.Missing(requiredIntents); missing {
			return 0, fmt.Errorf("%w: %s", ErrInsufficientPermission, name)
		}
	}

	now := s.now().UTC()
	if err := s.do(ctx, func(c context.Context) error {
		return fc.Sessions.Touch(c, token, now)
	}); err != nil {
		obs.Logger().Warn("session touch failed", zap.String("force", fc.Key), zap.Error(err))
	}
	if err := s.do(ctx, func(c context.Context) error {
		return fc.Credentials.TouchInteraction(c, ident.ID, now)
	}); err != nil {
		obs.Logger().Warn("interaction update failed", zap.String("force", fc.Key), zap.Error(err))
	}
	return ident.ID, nil
}

// tokenKnownElsewhere probes the other forces' session stores so that a token
// presented against the wrong force reports the tenancy fault rather than a
// generic invalid token.
func (s *Service) tokenKnownElsewhere(ctx context.Context, currentKey, token string) bool {
	for _, key := range s.forces.Keys() {
		if key == currentKey {
			continue
		}
		fc, err := s.forces.Resolve(key)
		if err != nil {
			continue
		}
		err = s.do(ctx, func(c context.Context) error {
			_, e := fc.Sessions.Lookup(c, token)
			return e
		})
		if err == nil {
			return true
		}
	}
	return false
}
