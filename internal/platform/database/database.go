package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"taskhub/internal/platform/config"
)

const memoryDSN = ":memory:"

// Open connects to the SQLite database named by cfg.URL. A "file:" prefix is
// stripped; ":memory:" is pinned to a single connection so every query sees
// the same database.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := strings.TrimPrefix(cfg.URL, "file:")
	if dsn == "" {
		dsn = memoryDSN
	}

	if dsn != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if dsn == memoryDSN {
		db.SetMaxOpenConns(1)
	} else {
		maxConns := cfg.MaxConnections
		if maxConns <= 0 {
			maxConns = 10
		}
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenMemory returns a migrated in-memory database. Used by tests and by the
// server when no database URL is configured.
func OpenMemory() (*sql.DB, error) {
	db, err := Open(config.DatabaseConfig{URL: memoryDSN})
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
