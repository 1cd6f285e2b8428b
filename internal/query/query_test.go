package query

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
)

var now = time.Date(2026, 10, 16, 14, 30, 0, 0, time.Local)

func day(offset int) *time.Time {
	d := models.StartOfDay(now).AddDate(0, 0, offset)
	return &d
}

func catID(id int64) *int64 { return &id }

// scenarioTasks is A(due today, open), B(due yesterday, open),
// C(due yesterday, done), D(no due date).
func scenarioTasks() []models.Task {
	done := now.Add(-time.Hour)
	return []models.Task{
		{ID: 1, Title: "A", Priority: models.PriorityMedium, DueDate: day(0), CreatedAt: now.Add(-4 * time.Hour)},
		{ID: 2, Title: "B", Priority: models.PriorityMedium, DueDate: day(-1), CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 3, Title: "C", Priority: models.PriorityMedium, DueDate: day(-1), Completed: true, CompletedAt: &done, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 4, Title: "D", Priority: models.PriorityMedium, CreatedAt: now.Add(-1 * time.Hour)},
	}
}

func ids(tasks []models.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestComputeStatsScenario(t *testing.T) {
	t.Parallel()

	s := ComputeStats(scenarioTasks(), now)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.TodayTotal)
	assert.Equal(t, 0, s.TodayCompleted)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 0.0, s.TodayProgress)
	assert.Equal(t, 25.0, s.Progress)
	assert.False(t, s.AllTodayDone)
}

func TestComputeStatsTodayProgress(t *testing.T) {
	t.Parallel()

	doneAt := now
	tasks := []models.Task{
		{ID: 1, DueDate: day(0), Completed: true, CompletedAt: &doneAt},
		{ID: 2, DueDate: day(0), Completed: true, CompletedAt: &doneAt},
		{ID: 3, DueDate: day(0)},
		{ID: 4, DueDate: day(1)},
	}

	s := ComputeStats(tasks, now)
	assert.InDelta(t, 66.666, s.TodayProgress, 0.01)

	s = ComputeStats(tasks[:2], now)
	assert.Equal(t, 100.0, s.TodayProgress)
	assert.True(t, s.AllTodayDone)

	assert.Equal(t, Stats{}, ComputeStats(nil, now))
}

func TestComputeStatsPermutationInvariant(t *testing.T) {
	t.Parallel()

	tasks := scenarioTasks()
	want := ComputeStats(tasks, now)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.Task(nil), tasks...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, ComputeStats(shuffled, now))
	}
}

func TestFilterOverdueScenario(t *testing.T) {
	t.Parallel()

	got := Filter(scenarioTasks(), Spec{ShowCompleted: true, Scope: ScopeOverdue}, now)
	assert.Equal(t, []int64{2}, ids(got))
}

func TestFilterTodayExcludesUndated(t *testing.T) {
	t.Parallel()

	got := Filter(scenarioTasks(), Spec{ShowCompleted: true, Scope: ScopeToday}, now)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestFilterConditions(t *testing.T) {
	t.Parallel()

	doneAt := now
	tasks := []models.Task{
		{ID: 1, Title: "Write Report", Priority: models.PriorityHigh, CategoryID: catID(1)},
		{ID: 2, Title: "report taxes", Priority: models.PriorityLow, CategoryID: catID(2)},
		{ID: 3, Title: "Gym", Priority: models.PriorityHigh, CategoryID: catID(1), Completed: true, CompletedAt: &doneAt},
		{ID: 4, Title: "Reporting", Priority: models.PriorityHigh},
	}

	tests := []struct {
		name string
		spec Spec
		want []int64
	}{
		{"everything", Spec{ShowCompleted: true}, []int64{1, 2, 3, 4}},
		{"hide completed", Spec{}, []int64{1, 2, 4}},
		{"search is case-insensitive", Spec{Search: "REPORT", ShowCompleted: true}, []int64{1, 2, 4}},
		{"category", Spec{CategoryID: catID(1), ShowCompleted: true}, []int64{1, 3}},
		{"priority", Spec{Priority: models.PriorityHigh, ShowCompleted: true}, []int64{1, 3, 4}},
		{"combined", Spec{Search: "report", CategoryID: catID(1), Priority: models.PriorityHigh}, []int64{1}},
		{"no match", Spec{Search: "zzz", ShowCompleted: true}, []int64{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Filter(tasks, tc.spec, now)))
		})
	}
}

func TestFilterSearchMatchesTermAsGiven(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{
		{ID: 1, Title: "buymilk"},
		{ID: 2, Title: "buy milk"},
	}

	assert.Equal(t, []int64{2}, ids(Filter(tasks, Spec{Search: " milk", ShowCompleted: true}, now)))
	assert.Equal(t, []int64{2}, ids(Filter(tasks, Spec{Search: " ", ShowCompleted: true}, now)))
	assert.Equal(t, []int64{1, 2}, ids(Filter(tasks, Spec{Search: "", ShowCompleted: true}, now)))
}

func TestFilterIsPure(t *testing.T) {
	t.Parallel()

	tasks := scenarioTasks()
	before := append([]models.Task(nil), tasks...)
	spec := Spec{Search: "a", Scope: ScopeToday}

	first := Filter(tasks, spec, now)
	second := Filter(tasks, spec, now)

	assert.Equal(t, first, second)
	assert.Equal(t, before, tasks)
}

func TestSortPriorityDesc(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{
		{ID: 1, Priority: models.PriorityLow},
		{ID: 2, Priority: models.PriorityUrgent},
		{ID: 3, Priority: models.PriorityMedium},
	}

	got := Sort(tasks, SortByPriority, Desc)
	assert.Equal(t, []int64{2, 3, 1}, ids(got))
	assert.Equal(t, []int64{1, 2, 3}, ids(tasks), "input must not be reordered")
}

func TestSortUnknownPriorityLowest(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{
		{ID: 1, Priority: "someday"},
		{ID: 2, Priority: models.PriorityLow},
	}

	assert.Equal(t, []int64{1, 2}, ids(Sort(tasks, SortByPriority, Asc)))
	assert.Equal(t, []int64{2, 1}, ids(Sort(tasks, SortByPriority, Desc)))
}

func TestSortDueDateUndatedLast(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{
		{ID: 1},
		{ID: 2, DueDate: day(3)},
		{ID: 3},
		{ID: 4, DueDate: day(-2)},
		{ID: 5, DueDate: day(0)},
	}

	assert.Equal(t, []int64{4, 5, 2, 1, 3}, ids(Sort(tasks, SortByDueDate, Asc)))
	assert.Equal(t, []int64{2, 5, 4, 1, 3}, ids(Sort(tasks, SortByDueDate, Desc)))
}

func TestSortTitleAndCreated(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{
		{ID: 1, Title: "banana", CreatedAt: now.Add(2 * time.Minute)},
		{ID: 2, Title: "Apple", CreatedAt: now.Add(1 * time.Minute)},
		{ID: 3, Title: "cherry", CreatedAt: now},
	}

	assert.Equal(t, []int64{2, 1, 3}, ids(Sort(tasks, SortByTitle, Asc)))
	assert.Equal(t, []int64{3, 1, 2}, ids(Sort(tasks, SortByTitle, Desc)))
	assert.Equal(t, []int64{3, 2, 1}, ids(Sort(tasks, SortByCreated, Asc)))
	assert.Equal(t, []int64{1, 2, 3}, ids(Sort(tasks, SortByCreated, Desc)))
}

func TestSortIsStable(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{
		{ID: 1, Priority: models.PriorityHigh},
		{ID: 2, Priority: models.PriorityLow},
		{ID: 3, Priority: models.PriorityHigh},
		{ID: 4, Priority: models.PriorityLow},
	}

	assert.Equal(t, []int64{2, 4, 1, 3}, ids(Sort(tasks, SortByPriority, Asc)))
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(Sort(tasks, SortByPriority, Desc)))
}

func TestSortUnknownFieldKeepsOrder(t *testing.T) {
	t.Parallel()

	tasks := []models.Task{{ID: 3}, {ID: 1}, {ID: 2}}
	assert.Equal(t, []int64{3, 1, 2}, ids(Sort(tasks, SortField("color"), Asc)))
	assert.NotNil(t, Sort(nil, SortByTitle, Asc))
}

func TestPartitionAndGroup(t *testing.T) {
	t.Parallel()

	tasks := scenarioTasks()
	tasks[0].CategoryID = catID(1)
	tasks[1].CategoryID = catID(99)

	pending, completed := Partition(tasks)
	assert.Equal(t, []int64{1, 2, 4}, ids(pending))
	assert.Equal(t, []int64{3}, ids(completed))

	groups := GroupByCategory(tasks, []models.Category{{ID: 1, Name: "Work"}})
	require.Len(t, groups, 2)
	assert.Equal(t, []int64{1}, ids(groups[1]))
	assert.Equal(t, []int64{2, 3, 4}, ids(groups[Uncategorized]))
}

func TestParsers(t *testing.T) {
	t.Parallel()

	f, ok := ParseSortField("dueDate")
	assert.True(t, ok)
	assert.Equal(t, SortByDueDate, f)

	_, ok = ParseSortField("color")
	assert.False(t, ok)

	o, ok := ParseOrder("DESC")
	assert.True(t, ok)
	assert.Equal(t, Desc, o)

	s, ok := ParseScope("")
	assert.True(t, ok)
	assert.Equal(t, ScopeAll, s)

	_, ok = ParseScope("tomorrow")
	assert.False(t, ok)
}
