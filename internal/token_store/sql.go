package token_store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore keeps slots in the console_tokens table of a PostgreSQL or SQLite
// database.
type SQLStore struct {
	db     *sqlx.DB
	now    func() time.Time
	logger *zap.Logger
}

// OpenSQL connects to the database for driver ("postgres" or "sqlite") and
// brings the schema up to date.
func OpenSQL(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported token store driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc's sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := migrateDB(db, driver, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Token store connected", zap.String("driver", driver))
	return &SQLStore{db: db, now: time.Now, logger: logger}, nil
}

func migrateDB(db *sqlx.DB, driver string, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var instance database.Driver
	switch driver {
	case "postgres":
		instance, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case "sqlite":
		instance, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run token store migration: %w", err)
	}

	logger.Info("Token store migration was run successfully")
	return nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID, slot string) (string, error) {
	var value string
	query := s.db.Rebind(`SELECT value FROM console_tokens WHERE session_id = ? AND slot = ?`)
	if err := s.db.GetContext(ctx, &value, query, sessionID, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, sessionID, slot, value string) error {
	query := s.db.Rebind(`INSERT INTO console_tokens (session_id, slot, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, sessionID, slot, value, timestamp(s.now())); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID string, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM console_tokens WHERE session_id = ? AND slot IN (?)`, sessionID, slots)
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}

// timestamp renders t for the updated_at column. SQLite compares it as text,
// so every write and every cutoff must use this one UTC layout.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

func (s *SQLStore) Expire(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM console_tokens WHERE updated_at < ?`)
	res, err := s.db.ExecContext(ctx, query, timestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to expire tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired tokens: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
