package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskmanager/internal/models"
)

// task_count is recomputed by the join on every read.
const categorySelect = `SELECT c.id, c.name, c.color, COUNT(t.id) AS task_count
    FROM categories c LEFT JOIN tasks t ON t.category_id = c.id`

type categoryRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	TaskCount int    `db:"task_count"`
}

func (r categoryRow) category() models.Category {
	c := models.Category{ID: r.ID, Name: r.Name, Color: r.Color, TaskCount: r.TaskCount}
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	return c
}

// ListCategories returns all categories with live task counts.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []categoryRow
	err := s.db.SelectContext(ctx, &rows, categorySelect+` GROUP BY c.id, c.name, c.color ORDER BY c.id`)
	if err != nil {
		return nil, backendErr("list categories", err)
	}

	out := make([]models.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.category())
	}
	return out, nil
}

// GetCategory fetches a single category with its live task count.
func (s *Store) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	var r categoryRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(categorySelect+` WHERE c.id = ? GROUP BY c.id, c.name, c.color`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Category{}, backendErr("get category", err)
	}
	return r.category(), nil
}
