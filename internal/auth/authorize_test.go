package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func loginFixture(t *testing.T) (*Service, *memCredStore, *memSessionStore, string) {
	t.Helper()
	ident := &Identity{ID: 21, NIF: 212121, PasswordHash: mustHash(t, "pw"), PasswordLogin: true}
	creds := newMemCredStore(ident)
	sessions := newMemSessionStore()
	resolver := newStaticResolver()
	resolver.add("psp", creds, sessions)
	svc := newTestService(t, resolver)

	result, err := svc.Login(context.Background(), "psp", PasswordCredentials{NIF: 212121, Password: "pw"}, false)
	if err != nil {
		t.Fatalf("login fixture: %v", err)
	}
	return svc, creds, sessions, result.Token
}

func TestAuthorizeMissingToken(t *testing.T) {
	svc, _, _, _ := loginFixture(t)
	for _, token := range []string{"", "   "} {
		if _, err := svc.Authorize(context.Background(), "psp", token); !errors.Is(err, ErrMissingToken) {
			t.Fatalf("token %q: got %v, want ErrMissingToken", token, err)
		}
	}
}

func TestAuthorizeUnknownToken(t *testing.T) {
	svc, _, _, _ := loginFixture(t)
	if _, err := svc.Authorize(context.Background(), "psp", "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestAuthorizeWrongForce(t *testing.T) {
	pspCreds := newMemCredStore(&Identity{ID: 1, NIF: 100, PasswordHash: mustHash(t, "pw"), PasswordLogin: true})
	gnrCreds := newMemCredStore(&Identity{ID: 1, NIF: 200, PasswordHash: mustHash(t, "pw"), PasswordLogin: true})
	resolver := newStaticResolver()
	resolver.add("psp", pspCreds, newMemSessionStore())
	resolver.add("gnr", gnrCreds, newMemSessionStore())
	svc := newTestService(t, resolver)

	result, err := svc.Login(context.Background(), "psp", PasswordCredentials{NIF: 100, Password: "pw"}, false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// A token minted by psp presented against gnr is a tenancy fault, not a
	// generic invalid token.
	if _, err := svc.Authorize(context.Background(), "gnr", result.Token); !errors.Is(err, ErrWrongForce) {
		t.Fatalf("got %v, want ErrWrongForce", err)
	}
	if _, err := svc.Authorize(context.Background(), "psp", result.Token); err != nil {
		t.Fatalf("token should remain valid on its own force: %v", err)
	}
}

func TestAuthorizeSuspended(t *testing.T) {
	svc, creds, _, token := loginFixture(t)

	creds.mu.Lock()
	creds.identities[21].Suspended = true
	creds.mu.Unlock()

	if _, err := svc.Authorize(context.Background(), "psp", token); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("got %v, want ErrAccountSuspended", err)
	}
}

func TestAuthorizeIntentChecks(t *testing.T) {
	svc, creds, _, token := loginFixture(t)
	ctx := context.Background()

	// No grants at all.
	_, err := svc.Authorize(ctx, "psp", token, IntentOfficersView)
	if !errors.Is(err, ErrInsufficientPermission) {
		t.Fatalf("ungranted: got %v", err)
	}
	if !strings.Contains(err.Error(), IntentOfficersView) {
		t.Fatalf("denial should name the missing intent: %v", err)
	}

	// An explicit false grant denies the same way as an absent one.
	if err := creds.SetIntent(ctx, 21, IntentOfficersView, false); err != nil {
		t.Fatalf("SetIntent: %v", err)
	}
	if _, err := svc.Authorize(ctx, "psp", token, IntentOfficersView); !errors.Is(err, ErrInsufficientPermission) {
		t.Fatalf("false grant: got %v", err)
	}

	if err := creds.SetIntent(ctx, 21, IntentOfficersView, true); err != nil {
		t.Fatalf("SetIntent: %v", err)
	}
	if err := creds.SetIntent(ctx, 21, IntentPatrolsManage, true); err != nil {
		t.Fatalf("SetIntent: %v", err)
	}

	if _, err := svc.Authorize(ctx, "psp", token, IntentOfficersView, IntentPatrolsManage); err != nil {
		t.Fatalf("all granted: %v", err)
	}

	// The denial names the first missing intent in requirement order.
	_, err = svc.Authorize(ctx, "psp", token, IntentOfficersView, IntentOfficersEdit, IntentEventsManage)
	if !errors.Is(err, ErrInsufficientPermission) {
		t.Fatalf("partial grants: got %v", err)
	}
	if !strings.Contains(err.Error(), IntentOfficersEdit) {
		t.Fatalf("expected first missing intent %q named: %v", IntentOfficersEdit, err)
	}
}

func TestAuthorizeRejectsUnregisteredRequirement(t *testing.T) {
	svc, _, _, token := loginFixture(t)
	if _, err := svc.Authorize(context.Background(), "psp", token, "bogus.intent"); err == nil {
		t.Fatal("expected error for unregistered required intent")
	}
}

func TestAuthorizeTouchesSessionMonotonically(t *testing.T) {
	ident := &Identity{ID: 30, NIF: 3030, PasswordHash: mustHash(t, "pw"), PasswordLogin: true}
	creds := newMemCredStore(ident)
	sessions := newMemSessionStore()
	resolver := newStaticResolver()
	resolver.add("psp", creds, sessions)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(t, resolver, WithClock(func() time.Time { return clock }))
	sessions.now = func() time.Time { return clock }

	result, err := svc.Login(context.Background(), "psp", PasswordCredentials{NIF: 3030, Password: "pw"}, false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	clock = base.Add(30 * time.Minute)
	if _, err := svc.Authorize(context.Background(), "psp", result.Token); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	used, ok := sessions.lastUsed(result.Token)
	if !ok || !used.Equal(clock) {
		t.Fatalf("last_used = %v, want %v", used, clock)
	}

	// A clock skewed backwards must not rewind last_used.
	clock = base.Add(10 * time.Minute)
	if _, err := svc.Authorize(context.Background(), "psp", result.Token); err != nil {
		t.Fatalf("authorize with skewed clock: %v", err)
	}
	used, _ = sessions.lastUsed(result.Token)
	if !used.Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("last_used rewound to %v", used)
	}
}

func TestAuthorizeBackendTimeoutRetriesOnce(t *testing.T) {
	sessions := newMemSessionStore()
	sessions.lookupErr = context.DeadlineExceeded
	resolver := newStaticResolver()
	resolver.add("psp", newMemCredStore(), sessions)
	svc := newTestService(t, resolver, WithOpTimeout(50*time.Millisecond))

	_, err := svc.Authorize(context.Background(), "psp", "SOMETOKENSOMETOKENSOMETOKENSOMET")
	if !errors.Is(err, ErrBackendTimeout) {
		t.Fatalf("got %v, want ErrBackendTimeout", err)
	}
	if sessions.calls != 2 {
		t.Fatalf("expected 1 retry (2 lookups), got %d", sessions.calls)
	}
}

func TestAuthorizeBackendUnavailable(t *testing.T) {
	sessions := newMemSessionStore()
	sessions.lookupErr = ErrBackendUnavailable
	resolver := newStaticResolver()
	resolver.add("psp", newMemCredStore(), sessions)
	svc := newTestService(t, resolver)

	if _, err := svc.Authorize(context.Background(), "psp", "SOMETOKENSOMETOKENSOMETOKENSOMET"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("got %v, want ErrBackendUnavailable", err)
	}
}
