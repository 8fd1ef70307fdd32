package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"caltodo/backend"
	"caltodo/model"
)

// taskRow mirrors the tasks table as PostgREST serves it.
type taskRow struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Text      string    `json:"text"`
	Priority  string    `json:"priority"`
	Completed bool      `json:"completed"`
	TaskDate  string    `json:"task_date"`
}

func (r taskRow) toTask() model.Task {
	return model.Task{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		UserID:    r.UserID,
		Text:      r.Text,
		Priority:  model.Priority(r.Priority),
		Completed: r.Completed,
		Date:      r.TaskDate,
	}
}

// List fetches all tasks owned by userID, newest first.
func (c *Client) List(ctx context.Context, userID string) ([]model.Task, error) {
	q := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + userID},
		"order":   {"created_at.desc"},
	}
	req, err := c.newRequest("GET", restPath+"/tasks", q, nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	var rows []taskRow
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}

// Create inserts one task and returns the stored row.
func (c *Client) Create(ctx context.Context, ins backend.TaskInsert) (model.Task, error) {
	text := strings.TrimSpace(ins.Text)
	if text == "" {
		return model.Task{}, backend.ErrEmptyTask
	}

	req, err := c.newRequest("POST", restPath+"/tasks", nil, taskRow{
		Text:      text,
		Priority:  string(ins.Priority),
		Completed: ins.Completed,
		TaskDate:  ins.Date,
		UserID:    ins.UserID,
	})
	if err != nil {
		return model.Task{}, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Prefer", "return=representation")

	var rows []taskRow
	if err := c.do(req, &rows); err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	if len(rows) == 0 {
		return model.Task{}, fmt.Errorf("create task: backend returned no row")
	}
	return rows[0].toTask(), nil
}

// Update applies a partial change to one task by id.
func (c *Client) Update(ctx context.Context, id string, upd backend.TaskUpdate) (model.Task, error) {
	patch := map[string]any{}
	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if text == "" {
			return model.Task{}, backend.ErrEmptyTask
		}
		patch["text"] = text
	}
	if upd.Priority != nil {
		patch["priority"] = string(*upd.Priority)
	}
	if upd.Completed != nil {
		patch["completed"] = *upd.Completed
	}
	if upd.Date != nil {
		patch["task_date"] = *upd.Date
	}

	q := url.Values{"id": {"eq." + id}}
	req, err := c.newRequest("PATCH", restPath+"/tasks", q, patch)
	if err != nil {
		return model.Task{}, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Prefer", "return=representation")

	var rows []taskRow
	if err := c.do(req, &rows); err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	if len(rows) == 0 {
		return model.Task{}, backend.ErrNotFound
	}
	return rows[0].toTask(), nil
}

// Delete removes one task by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	q := url.Values{"id": {"eq." + id}}
	req, err := c.newRequest("DELETE", restPath+"/tasks", q, nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
