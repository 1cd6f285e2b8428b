package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"taskmanager/internal/models"
)

const taskColumns = `id, title, completed, priority, category_id, due_date, notes, created_at, completed_at`

type taskRow struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Completed   bool           `db:"completed"`
	Priority    string         `db:"priority"`
	CategoryID  sql.NullInt64  `db:"category_id"`
	DueDate     sql.NullString `db:"due_date"`
	Notes       string         `db:"notes"`
	CreatedAt   time.Time      `db:"created_at"`
	CompletedAt sql.NullTime   `db:"completed_at"`
}

// task converts a row to the canonical model. Unparsable due dates read as none.
func (r taskRow) task(loc *time.Location) models.Task {
	t := models.Task{
		ID:        r.ID,
		Title:     r.Title,
		Completed: r.Completed,
		Priority:  models.Priority(r.Priority),
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}
	if r.CategoryID.Valid {
		cid := r.CategoryID.Int64
		t.CategoryID = &cid
	}
	if r.DueDate.Valid {
		t.DueDate = models.ParseDate(r.DueDate.String, loc)
	}
	if r.CompletedAt.Valid {
		at := r.CompletedAt.Time
		t.CompletedAt = &at
	}
	return models.Normalize(t)
}

// columns returns the writable column values of t in schema order.
func columns(t models.Task) []any {
	var (
		categoryID  sql.NullInt64
		dueDate     sql.NullString
		completedAt sql.NullTime
	)
	if t.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *t.CategoryID, Valid: true}
	}
	if t.DueDate != nil {
		dueDate = sql.NullString{String: models.FormatDate(*t.DueDate), Valid: true}
	}
	if t.CompletedAt != nil {
		completedAt = sql.NullTime{Time: t.CompletedAt.UTC(), Valid: true}
	}
	return []any{t.Title, t.Completed, string(t.Priority), categoryID, dueDate, t.Notes, t.CreatedAt.UTC(), completedAt}
}

// ListTasks returns every task, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, backendErr("list tasks", err)
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task(s.loc))
	}
	return tasks, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return s.getTask(ctx, s.db, id)
}

func (s *Store) getTask(ctx context.Context, q sqlx.QueryerContext, id int64) (models.Task, error) {
	var r taskRow
	err := sqlx.GetContext(ctx, q, &r, s.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, backendErr("get task", err)
	}
	return r.task(s.loc), nil
}

// CreateTask inserts a new task.
func (s *Store) CreateTask(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	draft, err := draft.Validate()
	if err != nil {
		return models.Task{}, err
	}

	t := models.NewTask(draft, 0, s.now())
	q := s.db.Rebind(`INSERT INTO tasks(title, completed, priority, category_id, due_date, notes, created_at, completed_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	if err := s.db.QueryRowxContext(ctx, q, columns(t)...).Scan(&id); err != nil {
		return models.Task{}, backendErr("insert task", err)
	}

	s.logger.Debug("task created", slog.Int64("id", id))
	return s.GetTask(ctx, id)
}

// UpdateTask reads the task, applies the patch and writes it back in one
// transaction.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if err := patch.Validate(); err != nil {
		return models.Task{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Task{}, backendErr("begin update", err)
	}
	defer tx.Rollback()

	current, err := s.getTask(ctx, tx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := current.Apply(patch, s.now()); err != nil {
		return models.Task{}, err
	}

	args := append(columns(current), id)
	_, err = tx.ExecContext(ctx, s.db.Rebind(`UPDATE tasks SET title = ?, completed = ?, priority = ?, category_id = ?,
        due_date = ?, notes = ?, created_at = ?, completed_at = ? WHERE id = ?`), args...)
	if err != nil {
		return models.Task{}, backendErr("update task", err)
	}

	updated, err := s.getTask(ctx, tx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Task{}, backendErr("commit update", err)
	}
	return updated, nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return backendErr("delete task", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return backendErr("delete task", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, models.ErrNotFound)
	}
	return nil
}
