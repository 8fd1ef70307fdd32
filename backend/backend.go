// Package backend defines the vendor-agnostic interface to the hosted
// data/auth service. The rest of the program never imports the vendor
// client directly.
package backend

import (
	"context"
	"errors"
	"time"

	"caltodo/model"
)

var (
	// ErrEmptyTask is returned before any remote call when a task's text
	// is empty or whitespace-only.
	ErrEmptyTask = errors.New("task text must not be empty")

	// ErrUnauthorized is returned when the backend rejects the session.
	ErrUnauthorized = errors.New("not authorized")

	// ErrNotFound is returned when the backend reports no such row.
	ErrNotFound = errors.New("not found")
)

// Session is an authenticated backend session.
type Session struct {
	User         model.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TaskInsert is the payload for creating a task. The backend assigns
// the id and both timestamps.
type TaskInsert struct {
	Text      string
	Priority  model.Priority
	Completed bool
	Date      string
	UserID    string
}

// TaskUpdate is a partial change to one task. Nil fields are left
// untouched by the backend.
type TaskUpdate struct {
	Text      *string
	Priority  *model.Priority
	Completed *bool
	Date      *string
}

// Auth is the authentication surface of the hosted service.
type Auth interface {
	// SignIn exchanges email/password credentials for a session.
	SignIn(ctx context.Context, email, password string) (Session, error)

	// SignUp registers a new account. No session is established; the
	// user confirms via an out-of-band email link first.
	SignUp(ctx context.Context, email, password string) (model.User, error)

	// SignOut invalidates the current session on the backend.
	SignOut(ctx context.Context) error

	// CurrentUser returns the authenticated identity, or
	// ErrUnauthorized when there is no valid session.
	CurrentUser(ctx context.Context) (model.User, error)
}

// Tasks is the row-scoped CRUD surface plus the change-notification
// channel.
type Tasks interface {
	// List returns all tasks owned by userID, newest first.
	List(ctx context.Context, userID string) ([]model.Task, error)

	// Create inserts a task and returns the stored row with the
	// backend-assigned id and timestamps. Empty/whitespace text is
	// rejected locally with ErrEmptyTask before any remote call.
	Create(ctx context.Context, ins TaskInsert) (model.Task, error)

	// Update applies a partial change to one task by id and returns
	// the stored row.
	Update(ctx context.Context, id string, upd TaskUpdate) (model.Task, error)

	// Delete removes one task by id.
	Delete(ctx context.Context, id string) error

	// SubscribeChanges opens a standing subscription to insert/update/
	// delete events scoped to userID. onChange carries no delta; the
	// caller refetches to reconcile. The returned disposer releases
	// the subscription and must be invoked on teardown.
	SubscribeChanges(ctx context.Context, userID string, onChange func()) (func(), error)
}

// Service is the full hosted-service surface.
type Service interface {
	Auth
	Tasks
}
