package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/yegors/mission-planner/pkg/logger"
	_ "modernc.org/sqlite"
)

// MemoryPath keeps the database in process memory for the lifetime of the server
const MemoryPath = ":memory:"

// Open opens the SQLite database at path and applies the connection settings
// every storage in this package relies on
func Open(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		path = MemoryPath
	}
	log.Named("sqlite").Info("Opening SQLite database", logger.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// only lives as long as its single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}
