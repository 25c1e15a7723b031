package database

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Migration struct {
	Version   string
	AppliedAt *int64
}

func migrationNames() ([]string, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if path.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`)
	return err
}

func appliedVersions(db *sql.DB) (map[string]int64, error) {
	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]int64)
	for rows.Next() {
		var version string
		var at int64
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// Migrate applies every embedded migration that has not been recorded in
// schema_migrations yet and returns the versions it applied.
func Migrate(db *sql.DB) ([]string, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	var ran []string
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if _, ok := applied[version]; ok {
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return ran, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		if err := applyMigration(db, version, string(content)); err != nil {
			return ran, err
		}

		log.Info().Str("version", version).Msg("applied migration")
		ran = append(ran, version)
	}

	return ran, nil
}

func applyMigration(db *sql.DB, version, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(content); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", version, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, version, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", version, err)
	}

	return tx.Commit()
}

// Status lists every embedded migration with its applied time, if any.
func Status(db *sql.DB) ([]Migration, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	names, err := migrationNames()
	if err != nil {
		return nil, err
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		m := Migration{Version: strings.TrimSuffix(name, ".sql")}
		if at, ok := applied[m.Version]; ok {
			at := at
			m.AppliedAt = &at
		}
		out = append(out, m)
	}
	return out, nil
}
