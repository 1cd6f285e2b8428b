// Package query derives the task views shown to the user: filtered and sorted
// lists plus progress statistics. Every function is pure and total.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"taskmanager/internal/models"
)

// Scope restricts tasks by due date relative to the current day.
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeToday   Scope = "today"
	ScopeOverdue Scope = "overdue"
)

// ParseScope maps user input to a Scope, defaulting to ScopeAll.
func ParseScope(s string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return ScopeAll, true
	case ScopeToday:
		return ScopeToday, true
	case ScopeOverdue:
		return ScopeOverdue, true
	default:
		return ScopeAll, false
	}
}

// Spec describes which tasks a view shows.
type Spec struct {
	Search        string
	CategoryID    *int64
	Priority      models.Priority
	ShowCompleted bool
	Scope         Scope
}

// Filter returns the tasks that satisfy every condition in spec. now decides
// the current calendar day and its location.
func Filter(tasks []models.Task, spec Spec, now time.Time) []models.Task {
	search := strings.ToLower(spec.Search)

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		if spec.CategoryID != nil && !t.InCategory(*spec.CategoryID) {
			continue
		}
		if spec.Priority != "" && t.Priority != spec.Priority {
			continue
		}
		if !spec.ShowCompleted && t.Completed {
			continue
		}
		switch spec.Scope {
		case ScopeToday:
			if !DueToday(t, now) {
				continue
			}
		case ScopeOverdue:
			if !Overdue(t, now) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// DueToday reports whether the task is due on now's calendar day.
func DueToday(t models.Task, now time.Time) bool {
	return t.DueDate != nil && models.SameDay(*t.DueDate, now)
}

// Overdue reports whether an open task was due before today.
func Overdue(t models.Task, now time.Time) bool {
	return t.DueDate != nil && !t.Completed && models.DayBefore(*t.DueDate, now)
}

// Partition splits tasks into pending and completed, keeping order.
func Partition(tasks []models.Task) (pending, completed []models.Task) {
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}
	return pending, completed
}

// Uncategorized is the GroupByCategory key for tasks without a known category.
const Uncategorized int64 = 0

// GroupByCategory buckets tasks by category. References to categories that are
// not loaded fall under Uncategorized.
func GroupByCategory(tasks []models.Task, categories []models.Category) map[int64][]models.Task {
	known := make(map[int64]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}

	groups := make(map[int64][]models.Task)
	for _, t := range tasks {
		key := Uncategorized
		if t.CategoryID != nil {
			if _, ok := known[*t.CategoryID]; ok {
				key = *t.CategoryID
			}
		}
		groups[key] = append(groups[key], t)
	}
	return groups
}

// SortField selects the sort key.
type SortField string

const (
	SortByTitle    SortField = "title"
	SortByPriority SortField = "priority"
	SortByDueDate  SortField = "due_date"
	SortByCreated  SortField = "created"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseSortField maps user input to a SortField. Empty input selects due date.
func ParseSortField(s string) (SortField, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "due_date", "duedate", "due":
		return SortByDueDate, true
	case "title":
		return SortByTitle, true
	case "priority":
		return SortByPriority, true
	case "created", "created_at", "createdat":
		return SortByCreated, true
	default:
		return SortByDueDate, false
	}
}

// ParseOrder maps user input to an Order. Empty input selects ascending.
func ParseOrder(s string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", Asc:
		return Asc, true
	case Desc:
		return Desc, true
	default:
		return Asc, false
	}
}

// Sort returns a stably sorted copy of tasks. Tasks without a due date always
// come last when sorting by due date, whatever the order.
func Sort(tasks []models.Task, field SortField, order Order) []models.Task {
	out := slices.Clone(tasks)
	if out == nil {
		out = []models.Task{}
	}

	dir := 1
	if order == Desc {
		dir = -1
	}

	var compare func(a, b models.Task) int
	switch field {
	case SortByTitle:
		compare = func(a, b models.Task) int {
			return dir * cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case SortByPriority:
		compare = func(a, b models.Task) int {
			return dir * cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		}
	case SortByDueDate:
		compare = func(a, b models.Task) int {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			}
			return dir * a.DueDate.Compare(*b.DueDate)
		}
	case SortByCreated:
		compare = func(a, b models.Task) int {
			return dir * a.CreatedAt.Compare(b.CreatedAt)
		}
	default:
		return out
	}

	slices.SortStableFunc(out, compare)
	return out
}
