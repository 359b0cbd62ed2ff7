package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSweepOnceExpiresByKind(t *testing.T) {
	ident := &Identity{ID: 40, NIF: 4040, PasswordHash: mustHash(t, "pw"), PasswordLogin: true}
	creds := newMemCredStore(ident)
	sessions := newMemSessionStore()
	resolver := newStaticResolver()
	resolver.add("psp", creds, sessions)

	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	clock := base
	sessions.now = func() time.Time { return clock }
	svc := newTestService(t, resolver, WithClock(func() time.Time { return clock }))
	sweeper := NewSweeper(resolver, WithSweeperClock(func() time.Time { return clock }))

	ordinary, err := svc.Login(context.Background(), "psp", PasswordCredentials{NIF: 4040, Password: "pw"}, false)
	if err != nil {
		t.Fatalf("login ordinary: %v", err)
	}
	persistent, err := svc.Login(context.Background(), "psp", PasswordCredentials{NIF: 4040, Password: "pw"}, true)
	if err != nil {
		t.Fatalf("login persistent: %v", err)
	}

	// Three hours idle: past the 2h ordinary window, well inside the 7d
	// persistent one.
	clock = base.Add(3 * time.Hour)
	if n := sweeper.SweepOnce(context.Background()); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if _, err := svc.Authorize(context.Background(), "psp", ordinary.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("swept session should read as invalid token, got %v", err)
	}
	if _, err := svc.Authorize(context.Background(), "psp", persistent.Token); err != nil {
		t.Fatalf("persistent session should survive 3h idle: %v", err)
	}

	// The authorize above refreshed last_used; eight further idle days push the
	// persistent session past its window too.
	clock = clock.Add(8 * 24 * time.Hour)
	if n := sweeper.SweepOnce(context.Background()); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if _, err := svc.Authorize(context.Background(), "psp", persistent.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired persistent session: got %v", err)
	}
	if sessions.count() != 0 {
		t.Fatalf("%d sessions left after full sweep", sessions.count())
	}
}

func TestSweepStalenessWindow(t *testing.T) {
	ident := &Identity{ID: 41, NIF: 4141, PasswordHash: mustHash(t, "pw"), PasswordLogin: true}
	sessions := newMemSessionStore()
	resolver := newStaticResolver()
	resolver.add("psp", newMemCredStore(ident), sessions)

	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	clock := base
	sessions.now = func() time.Time { return clock }
	svc := newTestService(t, resolver, WithClock(func() time.Time { return clock }))

	result, err := svc.Login(context.Background(), "psp", PasswordCredentials{NIF: 4141, Password: "pw"}, false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Expiry is enforced only by the sweeper: past-deadline but not yet swept
	// still authorizes, and the touch restarts the idle window.
	clock = base.Add(2*time.Hour + 30*time.Minute)
	if _, err := svc.Authorize(context.Background(), "psp", result.Token); err != nil {
		t.Fatalf("unswept stale session should still authorize: %v", err)
	}

	sweeper := NewSweeper(resolver, WithSweeperClock(func() time.Time { return clock }))
	if n := sweeper.SweepOnce(context.Background()); n != 0 {
		t.Fatalf("touched session swept: %d", n)
	}
}

func TestSweepRunStopsOnCancel(t *testing.T) {
	resolver := newStaticResolver()
	resolver.add("psp", newMemCredStore(), newMemSessionStore())
	sweeper := NewSweeper(resolver, WithSweepInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
