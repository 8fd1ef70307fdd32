// Package testutil provides an in-memory backend.Service for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"caltodo/backend"
	"caltodo/model"
)

// FakeBackend implements backend.Service with in-memory state and
// per-call error injection.
type FakeBackend struct {
	mu      sync.Mutex
	nextID  int
	tasks   []model.Task
	users   map[string]string // email -> password
	user    model.User
	signed  bool
	watches []func()

	// Clock stamps created/updated rows. Defaults to time.Now.
	Clock func() time.Time

	// Error injection.
	SignInErr      error
	SignUpErr      error
	SignOutErr     error
	CurrentUserErr error
	ListErr        error
	CreateErr      error
	UpdateErr      error
	DeleteErr      error
	SubscribeErr   error

	// Call counters for asserting that validation short-circuits
	// before the remote call.
	SignInCalls int
	SignUpCalls int
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

// NewFakeBackend creates an empty fake.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		users: make(map[string]string),
		Clock: time.Now,
	}
}

// Register seeds an account so SignIn can succeed.
func (f *FakeBackend) Register(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
}

// SeedTask inserts a row directly, bypassing Create.
func (f *FakeBackend) SeedTask(t model.Task) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		f.nextID++
		t.ID = fmt.Sprintf("task-%d", f.nextID)
	}
	f.tasks = append([]model.Task{t}, f.tasks...)
	return t
}

// NotifyChange fires every registered change subscription.
func (f *FakeBackend) NotifyChange() {
	f.mu.Lock()
	fns := make([]func(), len(f.watches))
	copy(fns, f.watches)
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// SignIn implements backend.Auth.
func (f *FakeBackend) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignInCalls++
	if f.SignInErr != nil {
		return backend.Session{}, f.SignInErr
	}
	stored, ok := f.users[email]
	if !ok || stored != password {
		return backend.Session{}, errors.New("Invalid login credentials")
	}
	f.user = model.User{ID: "user-" + email, Email: email}
	f.signed = true
	return backend.Session{
		User:        f.user,
		AccessToken: "token-" + email,
		ExpiresAt:   f.Clock().Add(time.Hour),
	}, nil
}

// SignUp implements backend.Auth. No session is established.
func (f *FakeBackend) SignUp(ctx context.Context, email, password string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignUpCalls++
	if f.SignUpErr != nil {
		return model.User{}, f.SignUpErr
	}
	if _, exists := f.users[email]; exists {
		return model.User{}, errors.New("User already registered")
	}
	f.users[email] = password
	return model.User{ID: "user-" + email, Email: email}, nil
}

// SignOut implements backend.Auth.
func (f *FakeBackend) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.user = model.User{}
	f.signed = false
	return nil
}

// CurrentUser implements backend.Auth.
func (f *FakeBackend) CurrentUser(ctx context.Context) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CurrentUserErr != nil {
		return model.User{}, f.CurrentUserErr
	}
	if !f.signed {
		return model.User{}, backend.ErrUnauthorized
	}
	return f.user, nil
}

// List implements backend.Tasks, newest first.
func (f *FakeBackend) List(ctx context.Context, userID string) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]model.Task, 0)
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create implements backend.Tasks.
func (f *FakeBackend) Create(ctx context.Context, ins backend.TaskInsert) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return model.Task{}, f.CreateErr
	}
	if strings.TrimSpace(ins.Text) == "" {
		return model.Task{}, backend.ErrEmptyTask
	}
	f.nextID++
	now := f.Clock()
	t := model.Task{
		ID:        fmt.Sprintf("task-%d", f.nextID),
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    ins.UserID,
		Text:      strings.TrimSpace(ins.Text),
		Priority:  ins.Priority,
		Completed: ins.Completed,
		Date:      ins.Date,
	}
	f.tasks = append([]model.Task{t}, f.tasks...)
	return t, nil
}

// Update implements backend.Tasks.
func (f *FakeBackend) Update(ctx context.Context, id string, upd backend.TaskUpdate) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return model.Task{}, f.UpdateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if upd.Text != nil {
			f.tasks[i].Text = strings.TrimSpace(*upd.Text)
		}
		if upd.Priority != nil {
			f.tasks[i].Priority = *upd.Priority
		}
		if upd.Completed != nil {
			f.tasks[i].Completed = *upd.Completed
		}
		if upd.Date != nil {
			f.tasks[i].Date = *upd.Date
		}
		f.tasks[i].UpdatedAt = f.Clock()
		return f.tasks[i], nil
	}
	return model.Task{}, backend.ErrNotFound
}

// Delete implements backend.Tasks.
func (f *FakeBackend) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

// SubscribeChanges implements backend.Tasks.
func (f *FakeBackend) SubscribeChanges(ctx context.Context, userID string, onChange func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	idx := len(f.watches)
	f.watches = append(f.watches, onChange)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.watches) {
			f.watches[idx] = func() {}
		}
	}, nil
}
