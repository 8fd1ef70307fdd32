// Package calendar builds the 42-cell month grid the calendar pane
// renders. It is pure: same month, tasks, and clock always produce the
// same cells.
package calendar

import (
	"time"

	"caltodo/model"
)

// GridSize is the fixed cell count of a month grid: six rows of seven
// weekdays, Sunday first.
const GridSize = 42

// Cell is one day slot in the grid.
type Cell struct {
	Date      time.Time
	InMonth   bool
	Today     bool
	TaskCount int
}

// MonthGrid returns exactly GridSize cells for the month containing
// (year, month): the trailing days of the previous month needed to
// align the first weekday, every day of the visible month, and enough
// leading days of the next month to fill the remainder. Task counts
// match tasks whose date equals the cell's calendar date; Today is
// computed against now, not stored.
func MonthGrid(year int, month time.Month, tasks []model.Task, now time.Time) []Cell {
	counts := make(map[string]int, len(tasks))
	for _, t := range tasks {
		counts[t.Date]++
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	lead := int(first.Weekday())

	cells := make([]Cell, 0, GridSize)
	for i := 0; i < GridSize; i++ {
		date := first.AddDate(0, 0, i-lead)
		cells = append(cells, Cell{
			Date:      date,
			InMonth:   date.Month() == month && date.Year() == year,
			Today:     model.SameDay(date, now),
			TaskCount: counts[model.FormatDate(date)],
		})
	}
	return cells
}

// FirstOfMonth normalizes t to the first day of its month, which is
// the canonical form of the visible-month cursor.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
}
