// Package memory is an in-process task store used for demos and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

// Store keeps tasks in a map guarded by a mutex. Ids come from a counter that
// only moves forward, so deleted ids are never handed out again.
type Store struct {
	mu sync.RWMutex

	nextID     int64
	tasks      map[int64]models.Task
	categories []models.Category
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCategories replaces the seeded categories.
func WithCategories(categories []models.Category) Option {
	return func(s *Store) {
		s.categories = slices.Clone(categories)
	}
}

// WithClock overrides time.Now for created and completed timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store seeded with the default categories.
func New(opts ...Option) *Store {
	s := &Store{
		nextID:     1,
		tasks:      make(map[int64]models.Task),
		categories: storage.DefaultCategories(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.Store = (*Store)(nil)

// Ping reports whether the context is still live.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// ListTasks returns every task, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, models.Normalize(t))
	}
	slices.SortFunc(out, func(a, b models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// GetTask returns a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %d: %w", id, models.ErrNotFound)
	}
	return models.Normalize(t), nil
}

// CreateTask stores a new task built from the draft.
func (s *Store) CreateTask(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}
	draft, err := draft.Validate()
	if err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	t := models.NewTask(draft, id, s.now())
	s.tasks[id] = t
	return models.Normalize(t), nil
}

// UpdateTask applies a partial update.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %d: %w", id, models.ErrNotFound)
	}
	t = t.Clone()
	if err := t.Apply(patch, s.now()); err != nil {
		return models.Task{}, err
	}
	s.tasks[id] = t
	return models.Normalize(t), nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, models.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

// ListCategories returns the categories with live task counts.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.countsLocked()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.Color == "" {
			c.Color = models.DefaultCategoryColor
		}
		c.TaskCount = counts[c.ID]
		out = append(out, c)
	}
	return out, nil
}

// GetCategory returns a category by id with its live task count.
func (s *Store) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	if err := ctx.Err(); err != nil {
		return models.Category{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := models.FindCategory(s.categories, id)
	if !ok {
		return models.Category{}, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	c.TaskCount = s.countsLocked()[id]
	return c, nil
}

func (s *Store) countsLocked() map[int64]int {
	tasks := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	return storage.CountByCategory(tasks)
}
