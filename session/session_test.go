package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"caltodo/model"
	"caltodo/testutil"
)

func TestSignInValidatesLocallyBeforeRemoteCall(t *testing.T) {
	fake := testutil.NewFakeBackend()
	g := NewGateway(fake, nil)

	cases := []struct {
		email    string
		password string
		want     error
	}{
		{"", "secret1", ErrInvalidEmail},
		{"not-an-email", "secret1", ErrInvalidEmail},
		{"user@host", "secret1", ErrInvalidEmail},
		{"user@example.com", "short", ErrShortPassword},
	}
	for _, tc := range cases {
		if _, err := g.SignIn(context.Background(), tc.email, tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("email=%q password=%q: expected %v, got %v", tc.email, tc.password, tc.want, err)
		}
	}
	if fake.SignInCalls != 0 {
		t.Fatalf("expected validation to short-circuit before remote call, got %d calls", fake.SignInCalls)
	}
}

func TestSignInSurfacesBackendMessage(t *testing.T) {
	fake := testutil.NewFakeBackend()
	g := NewGateway(fake, nil)

	_, err := g.SignIn(context.Background(), "user@example.com", "wrongpass")
	if err == nil || !strings.Contains(err.Error(), "Invalid login credentials") {
		t.Fatalf("expected backend message surfaced, got %v", err)
	}
	if _, ok := g.User(); ok {
		t.Fatalf("expected no session after rejection")
	}
}

func TestSignInEstablishesSessionAndNotifies(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.Register("user@example.com", "secret1")
	g := NewGateway(fake, nil)

	var events []Event
	g.Watch(func(ev Event, _ model.User) { events = append(events, ev) })

	u, err := g.SignIn(context.Background(), "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if u.Email != "user@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if got, ok := g.User(); !ok || got.ID != u.ID {
		t.Fatalf("expected gateway to hold signed-in user")
	}
	if len(events) != 1 || events[0] != EventSignedIn {
		t.Fatalf("expected one signed-in event, got %v", events)
	}
}

func TestSignUpRequiresMatchingConfirmation(t *testing.T) {
	fake := testutil.NewFakeBackend()
	g := NewGateway(fake, nil)

	if _, err := g.SignUp(context.Background(), "new@example.com", "secret1", "secret2"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if fake.SignUpCalls != 0 {
		t.Fatalf("expected no remote call on mismatch, got %d", fake.SignUpCalls)
	}
}

func TestSignUpEstablishesNoSession(t *testing.T) {
	fake := testutil.NewFakeBackend()
	g := NewGateway(fake, nil)

	u, err := g.SignUp(context.Background(), "new@example.com", "secret1", "secret1")
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if u.Email != "new@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, ok := g.User(); ok {
		t.Fatalf("sign-up must not establish a session; email confirmation comes first")
	}
}

func TestSignOutClearsStateEvenOnRemoteFailure(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.Register("user@example.com", "secret1")
	g := NewGateway(fake, nil)

	if _, err := g.SignIn(context.Background(), "user@example.com", "secret1"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	var events []Event
	g.Watch(func(ev Event, _ model.User) { events = append(events, ev) })

	fake.SignOutErr = errors.New("network down")
	if err := g.SignOut(context.Background()); err == nil {
		t.Fatalf("expected remote sign-out error surfaced")
	}
	if _, ok := g.User(); ok {
		t.Fatalf("expected local state cleared despite remote failure")
	}
	if len(events) != 1 || events[0] != EventSignedOut {
		t.Fatalf("expected signed-out event, got %v", events)
	}
}

func TestWatchDisposerRemovesListener(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.Register("user@example.com", "secret1")
	g := NewGateway(fake, nil)

	fired := 0
	dispose := g.Watch(func(Event, model.User) { fired++ })
	dispose()

	if _, err := g.SignIn(context.Background(), "user@example.com", "secret1"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if fired != 0 {
		t.Fatalf("expected disposed listener not to fire, got %d", fired)
	}
}
