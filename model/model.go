package model

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date form used everywhere a task
// date crosses a boundary (backend rows, grid cells, comparisons).
const DateLayout = "2006-01-02"

var (
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidDate     = errors.New("invalid task date")
)

// Priority is a task priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the three known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities for display: high sorts before medium before low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ParsePriority normalizes a user-entered priority string.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// Filter represents how tasks should be shown.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterHigh      Filter = "high"
	FilterMedium    Filter = "medium"
	FilterLow       Filter = "low"
)

// Valid reports whether f is a known filter.
func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterActive, FilterCompleted, FilterHigh, FilterMedium, FilterLow:
		return true
	}
	return false
}

// Matches reports whether a task with the given completion flag and
// priority passes the filter.
func (f Filter) Matches(completed bool, priority Priority) bool {
	switch f {
	case FilterActive:
		return !completed
	case FilterCompleted:
		return completed
	case FilterHigh, FilterMedium, FilterLow:
		return priority == Priority(f)
	default:
		return true
	}
}

// User is the authenticated identity as reported by the backend.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Task is an individual dated todo item. The backend owns identity and
// timestamps; UserID is empty when the backend reports no owner.
type Task struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id,omitempty"`
	Text      string    `json:"text"`
	Priority  Priority  `json:"priority"`
	Completed bool      `json:"completed"`
	Date      string    `json:"task_date"`
}

// FormatDate renders t as a canonical calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate validates a canonical calendar date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
