package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"caltodo/backend"
)

func TestSignInStoresSessionForLaterCalls(t *testing.T) {
	var gotGrant, gotBearer string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/token":
			gotGrant = r.URL.Query().Get("grant_type")
			w.Write([]byte(`{
				"access_token":"jwt-abc","refresh_token":"ref-abc","expires_in":3600,
				"user":{"id":"u1","email":"user@example.com"}
			}`))
		case "/rest/v1/tasks":
			gotBearer = r.Header.Get("Authorization")
			w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	sess, err := c.SignIn(context.Background(), "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if gotGrant != "password" {
		t.Fatalf("expected password grant, got %q", gotGrant)
	}
	if sess.User.ID != "u1" || sess.AccessToken != "jwt-abc" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if _, err := c.List(context.Background(), "u1"); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if gotBearer != "Bearer jwt-abc" {
		t.Fatalf("expected session bearer on data call, got %q", gotBearer)
	}
}

func TestSignInRejectionSurfacesServiceMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
	}))

	_, err := c.SignIn(context.Background(), "user@example.com", "wrongpass")
	if err == nil || !strings.Contains(err.Error(), "Invalid login credentials") {
		t.Fatalf("expected service message surfaced, got %v", err)
	}
	if c.accessToken() != "" {
		t.Fatalf("expected no session stored after rejection")
	}
}

func TestSignUpReturnsUserWithoutSession(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u2","email":"new@example.com"}`))
	}))

	u, err := c.SignUp(context.Background(), "new@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if u.ID != "u2" || u.Email != "new@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if c.accessToken() != "" {
		t.Fatalf("sign-up must not store a session")
	}
}

func TestSignOutClearsSessionEvenOnRemoteFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/token":
			w.Write([]byte(`{"access_token":"jwt-abc","refresh_token":"r","expires_in":3600,"user":{"id":"u1","email":"user@example.com"}}`))
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"service unavailable"}`))
		}
	}))

	if _, err := c.SignIn(context.Background(), "user@example.com", "secret1"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if err := c.SignOut(context.Background()); err == nil {
		t.Fatalf("expected remote error surfaced")
	}
	if c.accessToken() != "" {
		t.Fatalf("expected session cleared despite remote failure")
	}
}

func TestCurrentUserWithoutSessionIsUnauthorized(t *testing.T) {
	called := false
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.CurrentUser(context.Background())
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if called {
		t.Fatalf("expected no remote call without a token")
	}
}
