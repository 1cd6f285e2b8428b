// Package remote adapts a hosted record service to the storage.Store
// contract. Records may use either the suffixed or the plain field naming;
// only canonical models leave this package.
package remote

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

// Store implements storage.Store over the record service.
type Store struct {
	client *Client
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates a remote store using the given client.
func New(client *Client) *Store {
	return &Store{
		client: client,
		logger: client.logger,
		loc:    time.Local,
		now:    time.Now,
	}
}

// SetLocation sets the zone plain due dates are read in.
func (s *Store) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Store) decode(r record) (models.Task, error) {
	t, err := decodeTask(r, s.loc, s.now())
	if err != nil {
		return models.Task{}, err
	}
	if t.Completed && t.CompletedAt == nil {
		s.logger.Warn("completed task without completion time", slog.Int64("id", t.ID))
	}
	return t, nil
}

// ListTasks fetches every task, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	records, err := s.client.fetch(ctx, taskTable, fetchParams{
		Fields:  fieldRefs(taskFields...),
		OrderBy: []orderBy{{FieldName: fieldCreatedAt, SortType: "DESC"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(records))
	for _, r := range records {
		t, err := s.decode(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	// the service's ordering is advisory; plain-named records lack created_at_c
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return tasks, nil
}

// GetTask fetches a single task.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	r, err := s.client.get(ctx, taskTable, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", id, err)
	}
	return s.decode(r)
}

// CreateTask validates the draft and stores it.
func (s *Store) CreateTask(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	draft, err := draft.Validate()
	if err != nil {
		return models.Task{}, err
	}

	t := models.NewTask(draft, 0, s.now())
	r, err := s.client.create(ctx, taskTable, encodeTask(t))
	if err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	if r == nil {
		return models.Task{}, fmt.Errorf("create task: %w: no record returned", models.ErrBackend)
	}

	created, err := s.decode(r)
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Debug("task created", slog.Int64("id", created.ID))
	return created, nil
}

// UpdateTask reads the current record, applies the patch locally so
// CompletedAt is derived the same way as in every backend, and sends only
// the changed fields. Concurrent writers race; the last write wins.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if err := patch.Validate(); err != nil {
		return models.Task{}, err
	}

	current, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	next := current.Clone()
	if err := next.Apply(patch, s.now()); err != nil {
		return models.Task{}, err
	}

	changes := encodeChanges(current, next)
	if len(changes) == 1 {
		return next, nil
	}

	r, err := s.client.update(ctx, taskTable, changes)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	if r == nil {
		return next, nil
	}
	return s.decode(r)
}

// DeleteTask removes a task. The record is read first because the service
// reports a missing id only as a generic failed result.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.client.get(ctx, taskTable, id); err != nil {
		return fmt.Errorf("task %d: %w", id, err)
	}
	if err := s.client.remove(ctx, taskTable, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// ListCategories fetches the categories and the task category references
// concurrently and counts tasks per category locally.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var (
		catRecords  []record
		taskRecords []record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catRecords, err = s.client.fetch(gctx, categoryTable, fetchParams{Fields: fieldRefs(categoryFields...)})
		return err
	})
	g.Go(func() error {
		var err error
		taskRecords, err = s.client.fetch(gctx, taskTable, fetchParams{Fields: fieldRefs(fieldCategory)})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	counts := countRefs(taskRecords)
	out := make([]models.Category, 0, len(catRecords))
	for _, r := range catRecords {
		c, err := decodeCategory(r)
		if err != nil {
			return nil, err
		}
		c.TaskCount = counts[c.ID]
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Category) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// GetCategory fetches one category and counts the tasks referencing it.
func (s *Store) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	var (
		catRecord   record
		taskRecords []record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catRecord, err = s.client.get(gctx, categoryTable, id)
		return err
	})
	g.Go(func() error {
		var err error
		taskRecords, err = s.client.fetch(gctx, taskTable, fetchParams{
			Fields: fieldRefs(fieldCategory),
			Where:  []whereClause{{FieldName: fieldCategory, Operator: "EqualTo", Values: []any{id}}},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Category{}, fmt.Errorf("category %d: %w", id, err)
	}

	c, err := decodeCategory(catRecord)
	if err != nil {
		return models.Category{}, err
	}
	// the filter is re-applied in case the service ignores it
	c.TaskCount = countRefs(taskRecords)[c.ID]
	return c, nil
}

func countRefs(records []record) map[int64]int {
	counts := make(map[int64]int)
	for _, r := range records {
		if cid, ok := r.id(fieldCategory); ok {
			counts[cid]++
		}
	}
	return counts
}

// Ping checks that the service answers a minimal query.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.fetch(ctx, categoryTable, fetchParams{
		Fields:     fieldRefs(fieldName),
		PagingInfo: &pagingInfo{Limit: 1},
	})
	if err != nil {
		return fmt.Errorf("ping record service: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}
