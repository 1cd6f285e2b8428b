// Package sqlstore persists tasks in SQLite or PostgreSQL through sqlx.
package sqlstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

// Dialect selects the SQL flavor and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// Store wraps access to the database and exposes the storage.Store contract.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// OpenSQLite initializes a SQLite store at dbPath and runs the migrations.
// ":memory:" gives a private in-memory database.
func OpenSQLite(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	s, err := open(DialectSQLite, dsn, logger)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	s.db.SetMaxOpenConns(1)
	s.db.SetConnMaxLifetime(0)

	if err := s.migrate(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to PostgreSQL with the given DSN and runs the migrations.
func OpenPostgres(dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}

	s, err := open(DialectPostgres, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func open(dialect Dialect, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, err := sqlx.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	return &Store{
		db:      conn,
		dialect: dialect,
		logger:  logger.With(slog.String("store", string(dialect))),
		loc:     time.Local,
		now:     time.Now,
	}, nil
}

// SetLocation sets the zone plain due dates are read in.
func (s *Store) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w: %w", s.dialect, models.ErrBackend, err)
	}
	return nil
}

// SeedCategories inserts the given categories, leaving existing ids untouched.
func (s *Store) SeedCategories(ctx context.Context, categories []models.Category) error {
	q := s.db.Rebind(`INSERT INTO categories(id, name, color) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	for _, c := range categories {
		color := c.Color
		if color == "" {
			color = models.DefaultCategoryColor
		}
		if _, err := s.db.ExecContext(ctx, q, c.ID, c.Name, color); err != nil {
			return fmt.Errorf("seed category %q: %w: %w", c.Name, models.ErrBackend, err)
		}
	}
	s.logger.Debug("categories seeded", slog.Int("count", len(categories)))
	return nil
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func backendErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrBackend, err)
}
