package sqlstore

import (
	"fmt"
	"log/slog"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            color TEXT NOT NULL DEFAULT '#3B82F6'
        );`,
	`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            completed BOOLEAN NOT NULL DEFAULT 0,
            priority TEXT NOT NULL DEFAULT 'medium',
            category_id INTEGER,
            due_date TEXT,
            notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            completed_at DATETIME
        );`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category_id);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
            id BIGINT PRIMARY KEY,
            name TEXT NOT NULL,
            color TEXT NOT NULL DEFAULT '#3B82F6'
        );`,
	`CREATE TABLE IF NOT EXISTS tasks (
            id BIGSERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            completed BOOLEAN NOT NULL DEFAULT FALSE,
            priority TEXT NOT NULL DEFAULT 'medium',
            category_id BIGINT,
            due_date TEXT,
            notes TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            completed_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category_id);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);`,
}

// migrate creates the schema. Category ids are assigned by the seed, so that
// table has no sequence; tasks never reuse ids.
func (s *Store) migrate() error {
	stmts := sqliteSchema
	if s.dialect == DialectPostgres {
		stmts = postgresSchema
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.logger.Debug("migrations applied", slog.Int("statements", len(stmts)))
	return nil
}
