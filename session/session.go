// Package session gates access to the hosted auth service: local
// credential validation, sign-in/up/out, and auth-state events that
// drive which view the user may see.
package session

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"

	"github.com/charmbracelet/log"

	"caltodo/backend"
	"caltodo/model"
)

// MinPasswordLength matches the backend's own policy so obviously bad
// input never leaves the process.
const MinPasswordLength = 6

var (
	ErrInvalidEmail     = errors.New("enter a valid email address")
	ErrShortPassword    = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Event is an auth-state transition.
type Event int

const (
	EventSignedIn Event = iota
	EventSignedOut
)

// Gateway wraps the backend auth client and tracks the current user.
type Gateway struct {
	auth   backend.Auth
	logger *log.Logger

	mu        sync.Mutex
	user      model.User
	signedIn  bool
	listeners map[int]func(Event, model.User)
	nextID    int
}

// NewGateway creates a gateway over the given auth client. The logger
// may be nil.
func NewGateway(auth backend.Auth, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gateway{
		auth:      auth,
		logger:    logger,
		listeners: make(map[int]func(Event, model.User)),
	}
}

// Watch registers a listener for auth-state changes and returns a
// disposer that removes it.
func (g *Gateway) Watch(fn func(Event, model.User)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gateway) notify(ev Event, u model.User) {
	g.mu.Lock()
	fns := make([]func(Event, model.User), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(ev, u)
	}
}

// ValidateCredentials runs the local checks shared by sign-in and
// sign-up. Failures here never reach the backend.
func ValidateCredentials(email, password string) error {
	if !emailRx.MatchString(email) {
		return ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return ErrShortPassword
	}
	return nil
}

// SignIn validates locally, then exchanges credentials for a session.
// The backend's own error message is surfaced on rejection.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (model.User, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return model.User{}, err
	}

	sess, err := g.auth.SignIn(ctx, email, password)
	if err != nil {
		g.logger.Warn("sign-in rejected", "email", email, "err", err)
		return model.User{}, err
	}

	g.mu.Lock()
	g.user = sess.User
	g.signedIn = true
	g.mu.Unlock()

	g.notify(EventSignedIn, sess.User)
	return sess.User, nil
}

// SignUp validates locally (including confirmation equality) and
// registers the account. No session is established; the user confirms
// via the emailed link first.
func (g *Gateway) SignUp(ctx context.Context, email, password, confirm string) (model.User, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return model.User{}, err
	}
	if password != confirm {
		return model.User{}, ErrPasswordMismatch
	}
	return g.auth.SignUp(ctx, email, password)
}

// SignOut invalidates the remote session and clears local user state.
// Local state is cleared and the signed-out event fires even when the
// remote call fails; the session is gone either way.
func (g *Gateway) SignOut(ctx context.Context) error {
	err := g.auth.SignOut(ctx)
	if err != nil {
		g.logger.Warn("remote sign-out failed", "err", err)
	}

	g.mu.Lock()
	g.user = model.User{}
	g.signedIn = false
	g.mu.Unlock()

	g.notify(EventSignedOut, model.User{})
	return err
}

// CurrentUser queries the backend for the authenticated identity.
// backend.ErrUnauthorized means the caller must route to the login
// view.
func (g *Gateway) CurrentUser(ctx context.Context) (model.User, error) {
	u, err := g.auth.CurrentUser(ctx)
	if err != nil {
		return model.User{}, err
	}

	g.mu.Lock()
	g.user = u
	g.signedIn = true
	g.mu.Unlock()
	return u, nil
}

// User returns the locally known identity and whether a session is
// active.
func (g *Gateway) User() (model.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.user, g.signedIn
}
