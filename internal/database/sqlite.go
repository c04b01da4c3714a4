package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"educahub/internal/database/migrations"
	"educahub/internal/hub"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements hub.StateStore on a single SQLite table.
type SQLiteDatabase struct {
	db    *sql.DB
	clock hub.Clock
}

var _ hub.StateStore = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path, creating its directory and
// applying pending migrations. path can be ":memory:".
func NewSQLiteDatabase(path string, clock hub.Clock) (*SQLiteDatabase, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	if clock == nil {
		clock = hub.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite connection.
// The pool is capped at one connection: the store holds a handful of rows and
// an in-memory database only exists on the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

func (s *SQLiteDatabase) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM client_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("reading state %q: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *SQLiteDatabase) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.Exec(
		`INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing state %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDatabase) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM client_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting state %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
