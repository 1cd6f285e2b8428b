// Package storagetest holds the behavior every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

// Factory builds an empty store seeded with the given categories.
type Factory func(t *testing.T, categories []models.Category) storage.Store

// Categories is the seed used by Run.
var Categories = []models.Category{
	{ID: 1, Name: "Work", Color: "#3B82F6"},
	{ID: 2, Name: "Personal", Color: "#8B5CF6"},
}

// Run exercises the full Store contract against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateDefaults", testCreateDefaults},
		{"CreateRequiresTitle", testCreateRequiresTitle},
		{"IDsIncreaseAndAreNotReused", testIDsIncrease},
		{"GetMissing", testGetMissing},
		{"UpdateIsPartial", testUpdateIsPartial},
		{"UpdateDerivesCompletedAt", testUpdateDerivesCompletedAt},
		{"UpdateMissing", testUpdateMissing},
		{"UpdateRejectsEmptyTitle", testUpdateRejectsEmptyTitle},
		{"UpdateClearsFields", testUpdateClearsFields},
		{"Delete", testDelete},
		{"ListNewestFirst", testListNewestFirst},
		{"CategoryCountsAreLive", testCategoryCounts},
		{"GetCategory", testGetCategory},
		{"DanglingCategoryIsAllowed", testDanglingCategory},
		{"BulkDeletePartialFailure", testBulkDelete},
		{"Ping", testPing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t, Categories))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func dueIn(days int) *time.Time {
	d := models.StartOfDay(time.Now()).AddDate(0, 0, days)
	return &d
}

func mustCreate(t *testing.T, s storage.Store, d models.TaskDraft) models.Task {
	t.Helper()

	task, err := s.CreateTask(context.Background(), d)
	require.NoError(t, err)
	return task
}

// AssertCompletionInvariant checks completed == (completed_at != nil) for every task.
func AssertCompletionInvariant(t *testing.T, tasks ...models.Task) {
	t.Helper()

	for _, task := range tasks {
		assert.Equalf(t, task.Completed, task.CompletedAt != nil,
			"task %d: completed=%v completed_at=%v", task.ID, task.Completed, task.CompletedAt)
	}
}

func testCreateDefaults(t *testing.T, s storage.Store) {
	before := time.Now().Add(-time.Second)
	task := mustCreate(t, s, models.TaskDraft{Title: "  Write report  "})

	assert.Positive(t, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, "", task.Notes)
	assert.Nil(t, task.CategoryID)
	assert.Nil(t, task.DueDate)
	assert.True(t, task.CreatedAt.After(before), "created_at %v", task.CreatedAt)

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.Priority, got.Priority)
	assert.WithinDuration(t, task.CreatedAt, got.CreatedAt, time.Second)
}

func testCreateRequiresTitle(t *testing.T, s storage.Store) {
	_, err := s.CreateTask(context.Background(), models.TaskDraft{Title: "  "})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = s.CreateTask(context.Background(), models.TaskDraft{Title: "x", Priority: "asap"})
	require.ErrorIs(t, err, models.ErrValidation)

	tasks, err := s.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func testIDsIncrease(t *testing.T, s storage.Store) {
	a := mustCreate(t, s, models.TaskDraft{Title: "a"})
	b := mustCreate(t, s, models.TaskDraft{Title: "b"})
	require.Greater(t, b.ID, a.ID)

	require.NoError(t, s.DeleteTask(context.Background(), b.ID))

	c := mustCreate(t, s, models.TaskDraft{Title: "c"})
	assert.Greater(t, c.ID, b.ID)
}

func testGetMissing(t *testing.T, s storage.Store) {
	_, err := s.GetTask(context.Background(), 4242)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func testUpdateIsPartial(t *testing.T, s storage.Store) {
	ctx := context.Background()
	due := dueIn(2)
	task := mustCreate(t, s, models.TaskDraft{
		Title:      "original",
		Priority:   models.PriorityHigh,
		CategoryID: ptr(int64(1)),
		DueDate:    due,
		Notes:      "**bold** notes",
	})

	done, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	updated, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Title: ptr("x")})
	require.NoError(t, err)

	assert.Equal(t, "x", updated.Title)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.CompletedAt)
	assert.WithinDuration(t, *done.CompletedAt, *updated.CompletedAt, time.Second)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	require.NotNil(t, updated.CategoryID)
	assert.Equal(t, int64(1), *updated.CategoryID)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, models.FormatDate(*due), models.FormatDate(*updated.DueDate))
	assert.Equal(t, "**bold** notes", updated.Notes)
	assert.WithinDuration(t, task.CreatedAt, updated.CreatedAt, time.Second)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Title)
	assert.True(t, got.Completed)
	AssertCompletionInvariant(t, got)
}

func testUpdateDerivesCompletedAt(t *testing.T, s storage.Store) {
	ctx := context.Background()
	task := mustCreate(t, s, models.TaskDraft{Title: "toggle"})

	// only the flag is sent; the store fills in the timestamp
	done, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.NotNil(t, done.CompletedAt)

	reopened, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Completed: ptr(false)})
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)

	_, err = s.UpdateTask(ctx, task.ID, models.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	AssertCompletionInvariant(t, tasks...)
}

func testUpdateMissing(t *testing.T, s storage.Store) {
	_, err := s.UpdateTask(context.Background(), 4242, models.TaskPatch{Title: ptr("x")})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func testUpdateRejectsEmptyTitle(t *testing.T, s storage.Store) {
	task := mustCreate(t, s, models.TaskDraft{Title: "keep"})

	_, err := s.UpdateTask(context.Background(), task.ID, models.TaskPatch{Title: ptr("")})
	require.ErrorIs(t, err, models.ErrValidation)

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Title)
}

func testUpdateClearsFields(t *testing.T, s storage.Store) {
	ctx := context.Background()
	task := mustCreate(t, s, models.TaskDraft{Title: "t", CategoryID: ptr(int64(2)), DueDate: dueIn(0), Notes: "n"})

	updated, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{
		CategoryID:   ptr(int64(0)),
		ClearDueDate: true,
		Notes:        ptr(""),
		Priority:     ptr(models.PriorityUrgent),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.CategoryID)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "", updated.Notes)
	assert.Equal(t, models.PriorityUrgent, updated.Priority)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Nil(t, got.DueDate)
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	task := mustCreate(t, s, models.TaskDraft{Title: "gone"})

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err := s.GetTask(ctx, task.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	err = s.DeleteTask(ctx, task.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func testListNewestFirst(t *testing.T, s storage.Store) {
	var created []int64
	for _, title := range []string{"one", "two", "three"} {
		created = append(created, mustCreate(t, s, models.TaskDraft{Title: title}).ID)
	}

	tasks, err := s.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	got := make([]int64, 0, len(tasks))
	for _, task := range tasks {
		got = append(got, task.ID)
		assert.Equal(t, models.PriorityMedium, task.Priority)
	}
	assert.Equal(t, []int64{created[2], created[1], created[0]}, got)
}

func countOf(t *testing.T, s storage.Store, id int64) int {
	t.Helper()

	cats, err := s.ListCategories(context.Background())
	require.NoError(t, err)
	c, ok := models.FindCategory(cats, id)
	require.True(t, ok, "category %d not listed", id)
	return c.TaskCount
}

func testCategoryCounts(t *testing.T, s storage.Store) {
	ctx := context.Background()

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, len(Categories))
	for _, c := range cats {
		assert.Zero(t, c.TaskCount)
		assert.NotEmpty(t, c.Color)
	}

	a := mustCreate(t, s, models.TaskDraft{Title: "a", CategoryID: ptr(int64(1))})
	mustCreate(t, s, models.TaskDraft{Title: "b", CategoryID: ptr(int64(1))})
	mustCreate(t, s, models.TaskDraft{Title: "c", CategoryID: ptr(int64(2))})
	mustCreate(t, s, models.TaskDraft{Title: "d"})

	assert.Equal(t, 2, countOf(t, s, 1))
	assert.Equal(t, 1, countOf(t, s, 2))

	_, err = s.UpdateTask(ctx, a.ID, models.TaskPatch{CategoryID: ptr(int64(2))})
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(t, s, 1))
	assert.Equal(t, 2, countOf(t, s, 2))

	require.NoError(t, s.DeleteTask(ctx, a.ID))
	assert.Equal(t, 1, countOf(t, s, 2))
}

func testGetCategory(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mustCreate(t, s, models.TaskDraft{Title: "a", CategoryID: ptr(int64(2))})

	c, err := s.GetCategory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Personal", c.Name)
	assert.Equal(t, 1, c.TaskCount)

	_, err = s.GetCategory(ctx, 99)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func testDanglingCategory(t *testing.T, s storage.Store) {
	task := mustCreate(t, s, models.TaskDraft{Title: "orphan", CategoryID: ptr(int64(77))})
	require.NotNil(t, task.CategoryID)
	assert.Equal(t, int64(77), *task.CategoryID)

	assert.Zero(t, countOf(t, s, 1))
	assert.Zero(t, countOf(t, s, 2))
}

func testBulkDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	keep := mustCreate(t, s, models.TaskDraft{Title: "keep"})
	drop := mustCreate(t, s, models.TaskDraft{Title: "drop"})
	missing := drop.ID + 1000

	res := storage.BulkDelete(ctx, s, []int64{drop.ID, missing})

	assert.Equal(t, 1, res.Count())
	assert.Equal(t, []int64{drop.ID}, res.Deleted)
	require.Contains(t, res.Failed, missing)
	assert.ErrorIs(t, res.Failed[missing], models.ErrNotFound)

	_, err := s.GetTask(ctx, drop.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetTask(ctx, keep.ID)
	require.NoError(t, err)
}

func testPing(t *testing.T, s storage.Store) {
	require.NoError(t, s.Ping(context.Background()))
}
