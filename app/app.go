// Package app holds the view-state controller: the in-memory task
// mirror, the calendar cursor, filter and theme flags, and the
// optimistic mutation protocol that reconciles local state against the
// hosted backend.
package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"caltodo/backend"
	"caltodo/calendar"
	"caltodo/model"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTask  = errors.New("task text must not be empty")
	ErrNotSignedIn  = errors.New("no user session")
)

// Controller owns the process-local view state. The task mirror is a
// best-effort copy of the backend's rows for the current user; every
// mutation applies locally first and reverts to a pre-mutation
// snapshot when the backend rejects it.
//
// Methods are safe for the interleaved completions the presentation
// layer produces: an in-flight mutation releases the lock around its
// remote call, so a second mutation may land in between. The last
// local write wins for display; no client-side ordering is imposed
// across racing remote calls.
type Controller struct {
	svc    backend.Tasks
	logger *log.Logger
	now    func() time.Time

	mu           sync.Mutex
	userID       string
	tasks        []model.Task // mirror, newest first
	visibleMonth time.Time    // first day of the visible month
	selectedDate string       // YYYY-MM-DD, empty when nothing selected
	filter       model.Filter
	modalOpen    bool
	dark         bool
	unsubscribe  func()
}

// NewController creates a controller over the given task service. The
// logger may be nil.
func NewController(svc backend.Tasks, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{
		svc:    svc,
		logger: logger,
		now:    time.Now,
		filter: model.FilterAll,
	}
}

// Initialize binds the controller to a user and loads their tasks.
// On a load failure the mirror keeps whatever it held before.
func (c *Controller) Initialize(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrNotSignedIn
	}

	c.mu.Lock()
	c.userID = userID
	if c.visibleMonth.IsZero() {
		c.visibleMonth = calendar.FirstOfMonth(c.now())
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Subscribe opens the backend change channel for the bound user.
// notify fires on every inbound change event; the caller reacts by
// calling Refresh from its event loop. The subscription is released by
// Teardown.
func (c *Controller) Subscribe(ctx context.Context, notify func()) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return ErrNotSignedIn
	}

	dispose, err := c.svc.SubscribeChanges(ctx, userID, notify)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.unsubscribe = dispose
	c.mu.Unlock()
	return nil
}

// Teardown releases the change subscription and forgets the session's
// view state.
func (c *Controller) Teardown() {
	c.mu.Lock()
	dispose := c.unsubscribe
	c.unsubscribe = nil
	c.userID = ""
	c.tasks = nil
	c.selectedDate = ""
	c.modalOpen = false
	c.mu.Unlock()

	if dispose != nil {
		dispose()
	}
}

// Refresh refetches the full task list. A failure leaves the prior
// mirror untouched and is surfaced to the caller.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return ErrNotSignedIn
	}

	tasks, err := c.svc.List(ctx, userID)
	if err != nil {
		c.logger.Warn("task refresh failed", "err", err)
		return err
	}

	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()
	return nil
}

// Add creates a task optimistically: a placeholder with a locally
// generated id is prepended immediately, then replaced by the
// backend's row (its identity and timestamps) once the insert
// resolves. On failure the pre-mutation snapshot is restored.
// An empty date means today; an empty priority means medium.
func (c *Controller) Add(ctx context.Context, text string, priority model.Priority, date string) (model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, ErrInvalidTask
	}
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return model.Task{}, model.ErrInvalidPriority
	}
	if date == "" {
		date = model.FormatDate(c.now())
	} else if _, err := model.ParseDate(date); err != nil {
		return model.Task{}, err
	}

	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		return model.Task{}, ErrNotSignedIn
	}
	userID := c.userID
	snapshot := copyTasks(c.tasks)
	now := c.now()
	placeholder := model.Task{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
		Text:      text,
		Priority:  priority,
		Completed: false,
		Date:      date,
	}
	c.tasks = append([]model.Task{placeholder}, c.tasks...)
	c.mu.Unlock()

	created, err := c.svc.Create(ctx, backend.TaskInsert{
		Text:     text,
		Priority: priority,
		Date:     date,
		UserID:   userID,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tasks = snapshot
		c.logger.Warn("task create failed", "err", err)
		return model.Task{}, err
	}
	replaced := false
	for i := range c.tasks {
		if c.tasks[i].ID == placeholder.ID {
			c.tasks[i] = created
			replaced = true
			break
		}
	}
	if !replaced {
		// Placeholder gone (e.g. a refetch raced the insert); the
		// refetched list already holds the backend row.
		c.logger.Debug("create resolved after placeholder vanished", "id", created.ID)
	}
	return created, nil
}

// Toggle flips a task's completion flag optimistically and reverts on
// backend rejection.
func (c *Controller) Toggle(ctx context.Context, id string) (model.Task, error) {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx == -1 {
		c.mu.Unlock()
		return model.Task{}, ErrTaskNotFound
	}
	snapshot := copyTasks(c.tasks)
	c.tasks[idx].Completed = !c.tasks[idx].Completed
	c.tasks[idx].UpdatedAt = c.now()
	completed := c.tasks[idx].Completed
	c.mu.Unlock()

	updated, err := c.svc.Update(ctx, id, backend.TaskUpdate{Completed: &completed})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tasks = snapshot
		c.logger.Warn("task toggle failed", "id", id, "err", err)
		return model.Task{}, err
	}
	c.merge(updated)
	return updated, nil
}

// Edit replaces a task's text optimistically and reverts on backend
// rejection.
func (c *Controller) Edit(ctx context.Context, id, text string) (model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, ErrInvalidTask
	}

	c.mu.Lock()
	idx := c.indexOf(id)
	if idx == -1 {
		c.mu.Unlock()
		return model.Task{}, ErrTaskNotFound
	}
	snapshot := copyTasks(c.tasks)
	c.tasks[idx].Text = text
	c.tasks[idx].UpdatedAt = c.now()
	c.mu.Unlock()

	updated, err := c.svc.Update(ctx, id, backend.TaskUpdate{Text: &text})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tasks = snapshot
		c.logger.Warn("task edit failed", "id", id, "err", err)
		return model.Task{}, err
	}
	c.merge(updated)
	return updated, nil
}

// Delete removes a task optimistically. Deleting an id the mirror does
// not hold is a local no-op.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx == -1 {
		c.mu.Unlock()
		return nil
	}
	snapshot := copyTasks(c.tasks)
	c.tasks = append(c.tasks[:idx:idx], c.tasks[idx+1:]...)
	c.mu.Unlock()

	err := c.svc.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tasks = snapshot
		c.logger.Warn("task delete failed", "id", id, "err", err)
		return err
	}
	return nil
}

// Tasks returns the mirror as a copy.
func (c *Controller) Tasks() []model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyTasks(c.tasks)
}

// FilteredTasks applies the active filter and the display ordering:
// incomplete before completed, and within each group priority high,
// medium, low. The sort is stable over the mirror's newest-first
// order.
func (c *Controller) FilteredTasks() []model.Task {
	c.mu.Lock()
	filter := c.filter
	all := copyTasks(c.tasks)
	c.mu.Unlock()

	out := make([]model.Task, 0, len(all))
	for _, t := range all {
		if filter.Matches(t.Completed, t.Priority) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return !out[i].Completed
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

// TasksOn returns the tasks dated on the given calendar date.
func (c *Controller) TasksOn(date string) []model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Task, 0)
	for _, t := range c.tasks {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

// Grid builds the 42-cell month grid for the visible month.
func (c *Controller) Grid() []calendar.Cell {
	c.mu.Lock()
	month := c.visibleMonth
	tasks := copyTasks(c.tasks)
	c.mu.Unlock()
	if month.IsZero() {
		month = calendar.FirstOfMonth(c.now())
	}
	return calendar.MonthGrid(month.Year(), month.Month(), tasks, c.now())
}

// VisibleMonth returns the first day of the visible month.
func (c *Controller) VisibleMonth() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visibleMonth.IsZero() {
		return calendar.FirstOfMonth(c.now())
	}
	return c.visibleMonth
}

// NextMonth advances the visible-month cursor.
func (c *Controller) NextMonth() {
	c.shiftMonth(1)
}

// PrevMonth rewinds the visible-month cursor.
func (c *Controller) PrevMonth() {
	c.shiftMonth(-1)
}

func (c *Controller) shiftMonth(months int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visibleMonth.IsZero() {
		c.visibleMonth = calendar.FirstOfMonth(c.now())
	}
	c.visibleMonth = c.visibleMonth.AddDate(0, months, 0)
}

// SetVisibleMonth jumps the cursor to the month containing t.
func (c *Controller) SetVisibleMonth(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visibleMonth = calendar.FirstOfMonth(t)
}

// OpenModal selects a date and opens the day modal.
func (c *Controller) OpenModal(date string) error {
	if _, err := model.ParseDate(date); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedDate = date
	c.modalOpen = true
	return nil
}

// CloseModal closes the day modal and clears the selection.
func (c *Controller) CloseModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modalOpen = false
	c.selectedDate = ""
}

// ModalOpen reports whether the day modal is open.
func (c *Controller) ModalOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modalOpen
}

// SelectedDate returns the selected calendar date, if any.
func (c *Controller) SelectedDate() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDate, c.selectedDate != ""
}

// SetFilter sets the active task filter.
func (c *Controller) SetFilter(f model.Filter) error {
	if !f.Valid() {
		return model.ErrInvalidFilter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
	return nil
}

// Filter returns the active task filter.
func (c *Controller) Filter() model.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetDark sets the theme flag.
func (c *Controller) SetDark(dark bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dark = dark
}

// ToggleDark flips the theme flag and returns the new value.
func (c *Controller) ToggleDark() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dark = !c.dark
	return c.dark
}

// Dark reports whether the dark theme is active.
func (c *Controller) Dark() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dark
}

// UserID returns the bound user, if any.
func (c *Controller) UserID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.userID != ""
}

// indexOf requires c.mu held.
func (c *Controller) indexOf(id string) int {
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// merge replaces the mirrored row with the backend's copy. Requires
// c.mu held. A row the mirror no longer holds is dropped: a refetch or
// delete got there first and its state wins.
func (c *Controller) merge(t model.Task) {
	for i := range c.tasks {
		if c.tasks[i].ID == t.ID {
			c.tasks[i] = t
			return
		}
	}
}

func copyTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}
