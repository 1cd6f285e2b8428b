package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCategoryColor is used when a category carries no color of its own.
const DefaultCategoryColor = "#3B82F6"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for sorting. Unknown values rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// ParsePriority accepts the priority names case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// Category groups tasks. TaskCount is derived from the task set on every read.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	TaskCount int    `json:"task_count"`
}

// Task is a single actionable item.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	CategoryID  *int64     `json:"category_id"`
	DueDate     *time.Time `json:"due_date"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// InCategory reports whether the task references the given category id.
func (t Task) InCategory(id int64) bool {
	return t.CategoryID != nil && *t.CategoryID == id
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.CategoryID != nil {
		cid := *t.CategoryID
		out.CategoryID = &cid
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		out.CompletedAt = &c
	}
	return out
}

// TaskDraft carries the caller supplied fields for a new task.
type TaskDraft struct {
	Title      string
	Priority   Priority
	CategoryID *int64
	DueDate    *time.Time
	Notes      string
}

// Validate trims the draft and fills defaults.
func (d TaskDraft) Validate() (TaskDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, fmt.Errorf("task title must not be empty: %w", ErrValidation)
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	} else if !d.Priority.Valid() {
		return d, fmt.Errorf("unknown priority %q: %w", d.Priority, ErrValidation)
	}
	if d.CategoryID != nil && *d.CategoryID <= 0 {
		d.CategoryID = nil
	}
	return d, nil
}

// NewTask builds the persisted form of a validated draft.
func NewTask(d TaskDraft, id int64, now time.Time) Task {
	t := Task{
		ID:         id,
		Title:      d.Title,
		Priority:   d.Priority,
		CategoryID: d.CategoryID,
		DueDate:    d.DueDate,
		Notes:      d.Notes,
		CreatedAt:  now,
	}
	return t.Clone()
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title     *string
	Completed *bool
	Priority  *Priority
	// CategoryID pointing at 0 removes the category.
	CategoryID   *int64
	DueDate      *time.Time
	ClearDueDate bool
	Notes        *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Completed == nil && p.Priority == nil &&
		p.CategoryID == nil && p.DueDate == nil && !p.ClearDueDate && p.Notes == nil
}

// Validate checks the fields present in the patch.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("task title must not be empty: %w", ErrValidation)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", *p.Priority, ErrValidation)
	}
	if p.CategoryID != nil && *p.CategoryID < 0 {
		return fmt.Errorf("invalid category id %d: %w", *p.CategoryID, ErrValidation)
	}
	if p.DueDate != nil && p.ClearDueDate {
		return fmt.Errorf("due date both set and cleared: %w", ErrValidation)
	}
	return nil
}

// Apply copies the patch onto t. CompletedAt follows Completed: it is set to now
// on a false to true transition and cleared on true to false.
func (t *Task) Apply(p TaskPatch, now time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.CategoryID != nil {
		if *p.CategoryID == 0 {
			t.CategoryID = nil
		} else {
			cid := *p.CategoryID
			t.CategoryID = &cid
		}
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Completed != nil && *p.Completed != t.Completed {
		t.Completed = *p.Completed
		if t.Completed {
			at := now
			t.CompletedAt = &at
		} else {
			t.CompletedAt = nil
		}
	}
	return nil
}

// Normalize fills defaulted fields the way every backend reports them.
func Normalize(t Task) Task {
	t = t.Clone()
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.Completed {
		t.CompletedAt = nil
	}
	if t.CategoryID != nil && *t.CategoryID <= 0 {
		t.CategoryID = nil
	}
	return t
}

// FindCategory returns the category with the given id, if loaded.
func FindCategory(categories []Category, id int64) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName looks a category up by display name, ignoring case.
func CategoryByName(categories []Category, name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}
