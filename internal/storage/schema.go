// Package storage persists extraction runs to SQLite and reads them back.
//
// A run groups the Module Records produced by one invocation. Classes,
// methods and functions keep their declaration order through an ordinal
// column so a record read back is identical to the one written.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL
)`

const createModulesTable = `
CREATE TABLE IF NOT EXISTS modules (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path       TEXT NOT NULL,
	docstring  TEXT,
	UNIQUE (run_id, path)
)`

const createClassesTable = `
CREATE TABLE IF NOT EXISTS classes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	module_id  INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
	ordinal    INTEGER NOT NULL,
	name       TEXT NOT NULL,
	docstring  TEXT,
	bases      TEXT NOT NULL
)`

// class_id is NULL for module-level functions.
const createFunctionsTable = `
CREATE TABLE IF NOT EXISTS functions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	module_id  INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
	class_id   INTEGER REFERENCES classes(id) ON DELETE CASCADE,
	ordinal    INTEGER NOT NULL,
	name       TEXT NOT NULL,
	docstring  TEXT,
	content    TEXT NOT NULL
)`

const createFailuresTable = `
CREATE TABLE IF NOT EXISTS failures (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path     TEXT NOT NULL,
	message  TEXT NOT NULL
)`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_classes_module ON classes(module_id, ordinal)",
	"CREATE INDEX IF NOT EXISTS idx_functions_module ON functions(module_id, class_id, ordinal)",
	"CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)",
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists. Use ":memory:" for a throwaway database.
func Open(path string) (*sql.DB, error) {
	// Foreign keys are a per-connection setting, so request them in the DSN
	// to cover every pooled connection.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// In-memory databases are per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// CreateSchema creates all tables and indexes in one transaction.
// It is idempotent.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"runs", createRunsTable},
		{"modules", createModulesTable},
		{"classes", createClassesTable},
		{"functions", createFunctionsTable},
		{"failures", createFailuresTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}
