// Package sqlite implements the single-table store adapters over an embedded
// SQLite database. This is the legacy v1 schema, authoritative until a
// service is switched to migrated mode.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"pointsbot/internal/store"
)

// Store owns the database handle shared by every v1 table adapter.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the SQLite database at path with WAL mode and foreign keys on.
func New(ctx context.Context, databasePath string, logger *slog.Logger) (*Store, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "store_sqlite"),
	}, nil
}

// Close releases the database connection.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping ensures the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations applies the v1 init script.
func (s *Store) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	sqlContent, err := fs.ReadFile(filesystem, "sqlite/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(sqlContent)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// Tables exposes the adapter bundle backed by this database.
func (s *Store) Tables() store.Tables {
	return store.Tables{
		Users:          &userTable{s},
		Wallets:        &walletTable{s},
		Stats:          &statsTable{s},
		Ledger:         &ledgerTable{s},
		Checkins:       &checkinTable{s},
		Tasks:          &taskTable{s},
		Orders:         &orderTable{s},
		Sessions:       &sessionTable{s},
		SessionRecords: &sessionRecordTable{s},
		Actions:        &actionTable{s},
	}
}

// translate maps driver failures onto the shared store sentinels. modernc
// does not export stable error values for constraint classes, so the unique
// violation is matched on the canonical message.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed") {
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toJSON(val map[string]any) (any, error) {
	if val == nil {
		return nil, nil
	}
	data, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func fromJSON(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"_raw": string(data)}
	}
	return m
}

type rowScanner interface {
	Scan(dest ...any) error
}
