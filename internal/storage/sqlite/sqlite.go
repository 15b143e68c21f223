package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrDuplicateKey indicates the unique (title_norm, venue_norm, start_date)
// index rejected an insert.
var ErrDuplicateKey = errors.New("event violates unique (title, venue, start) constraint")

// ErrNotFound indicates a requested record does not exist
var ErrNotFound = errors.New("record not found")

// SQLiteStorage implements the engine's Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for better concurrency between sweep workers
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database handle
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Normalize lowercases text, strips punctuation, and collapses whitespace.
// Both the similarity scorer and the uniqueness backstop rely on the same
// normalization so their notions of "the same event" agree.
func Normalize(text string) string {
	text = nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Join(strings.Fields(text), " ")
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
