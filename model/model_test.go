package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTaskWireFieldNames(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        "t1",
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    "u1",
		Text:      "write tests",
		Priority:  PriorityHigh,
		Completed: true,
		Date:      "2026-02-19",
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "created_at", "updated_at", "user_id", "text", "priority", "completed", "task_date"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected wire field %q, got %v", key, fields)
		}
	}
}

func TestPriorityRankOrdersHighFirst(t *testing.T) {
	if !(PriorityHigh.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityLow.Rank()) {
		t.Fatalf("unexpected priority ranks: high=%d medium=%d low=%d",
			PriorityHigh.Rank(), PriorityMedium.Rank(), PriorityLow.Rank())
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("  High ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p != PriorityHigh {
		t.Fatalf("expected high, got %q", p)
	}
	if _, err := ParsePriority("urgent"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestFilterMatches(t *testing.T) {
	cases := []struct {
		filter    Filter
		completed bool
		priority  Priority
		want      bool
	}{
		{FilterAll, true, PriorityLow, true},
		{FilterAll, false, PriorityHigh, true},
		{FilterActive, false, PriorityLow, true},
		{FilterActive, true, PriorityLow, false},
		{FilterCompleted, true, PriorityMedium, true},
		{FilterCompleted, false, PriorityMedium, false},
		{FilterHigh, false, PriorityHigh, true},
		{FilterHigh, false, PriorityLow, false},
		{FilterLow, true, PriorityLow, true},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(tc.completed, tc.priority); got != tc.want {
			t.Fatalf("filter %q completed=%v priority=%q: expected %v, got %v",
				tc.filter, tc.completed, tc.priority, tc.want, got)
		}
	}
}

func TestParseDateRejectsMalformedInput(t *testing.T) {
	if _, err := ParseDate("2024-03-15"); err != nil {
		t.Fatalf("expected valid date, got %v", err)
	}
	for _, bad := range []string{"", "15-03-2024", "2024/03/15", "2024-13-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %q, got %v", bad, err)
		}
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 15, 1, 0, 0, 0, time.Local)
	b := time.Date(2024, 3, 15, 23, 59, 0, 0, time.Local)
	c := time.Date(2024, 3, 16, 0, 0, 0, 0, time.Local)
	if !SameDay(a, b) {
		t.Fatalf("expected same day for %v and %v", a, b)
	}
	if SameDay(a, c) {
		t.Fatalf("expected different days for %v and %v", a, c)
	}
}
