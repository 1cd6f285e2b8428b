// Package storage defines the persistence contract shared by every task
// backend and the helpers that operate on top of it.
package storage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"taskmanager/internal/models"
)

// Store persists tasks and serves read-only categories. Implementations wrap
// their failures in models.ErrValidation, models.ErrNotFound or
// models.ErrBackend.
type Store interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	CreateTask(ctx context.Context, draft models.TaskDraft) (models.Task, error)
	// UpdateTask applies only the fields present in patch. CompletedAt is
	// derived from Completed transitions inside the store.
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (models.Category, error)

	Ping(ctx context.Context) error
	Close() error
}

// bulkConcurrency bounds the number of in-flight deletes.
const bulkConcurrency = 8

// BulkResult reports the outcome of BulkDelete per id.
type BulkResult struct {
	Deleted []int64
	Failed  map[int64]error
}

// Count is the number of successful deletions.
func (r BulkResult) Count() int {
	return len(r.Deleted)
}

// BulkDelete deletes every id independently. A failure on one id never
// aborts the others. Repeated ids are deleted once; Deleted keeps the order of
// first appearance.
func BulkDelete(ctx context.Context, store Store, ids []int64) BulkResult {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	errs := make([]error, len(unique))
	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for i, id := range unique {
		i, id := i, id
		g.Go(func() error {
			errs[i] = store.DeleteTask(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	res := BulkResult{Deleted: []int64{}, Failed: map[int64]error{}}
	for i, id := range unique {
		if errs[i] != nil {
			res.Failed[id] = errs[i]
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}
	return res
}

// CountByCategory tallies tasks per referenced category id.
func CountByCategory(tasks []models.Task) map[int64]int {
	counts := make(map[int64]int)
	for _, t := range tasks {
		if t.CategoryID != nil {
			counts[*t.CategoryID]++
		}
	}
	return counts
}

// DefaultCategories seeds local backends that start empty.
func DefaultCategories() []models.Category {
	return []models.Category{
		{ID: 1, Name: "Work", Color: "#3B82F6"},
		{ID: 2, Name: "Personal", Color: "#8B5CF6"},
		{ID: 3, Name: "Shopping", Color: "#F59E0B"},
		{ID: 4, Name: "Health", Color: "#10B981"},
	}
}
