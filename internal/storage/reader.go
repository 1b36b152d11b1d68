package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/pydefs/internal/extract"
)

// ErrNotFound indicates a run or module that is not stored.
var ErrNotFound = errors.New("not found")

// Run describes a stored extraction run.
type Run struct {
	ID        string
	StartedAt time.Time
	Modules   int
	Failures  int
}

// Failure is a file that could not be extracted in a run.
type Failure struct {
	Path    string
	Message string
}

// Reader loads stored runs.
type Reader struct {
	db *sql.DB
}

// NewReader creates a Reader. DB should have schema already created.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// LoadModule rebuilds the Module Record stored for path within runID.
func (r *Reader) LoadModule(runID, path string) (*extract.ModuleRecord, error) {
	var moduleID int64
	var docstring sql.NullString

	err := sq.Select("id", "docstring").
		From("modules").
		Where(sq.Eq{"run_id": runID, "path": path}).
		RunWith(r.db).
		QueryRow().
		Scan(&moduleID, &docstring)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("module %s in run %s: %w", path, runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module %s: %w", path, err)
	}

	record := &extract.ModuleRecord{
		Docstring: stringPtr(docstring),
		Classes:   []extract.ClassRecord{},
		Functions: []extract.FunctionRecord{},
	}

	classIDs, err := r.loadClasses(moduleID, record)
	if err != nil {
		return nil, err
	}

	rows, err := sq.Select("class_id", "name", "docstring", "content").
		From("functions").
		Where(sq.Eq{"module_id": moduleID}).
		OrderBy("ordinal").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query functions of %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var classID sql.NullInt64
		var fn extract.FunctionRecord
		var fnDoc sql.NullString
		if err := rows.Scan(&classID, &fn.Name, &fnDoc, &fn.Content); err != nil {
			return nil, fmt.Errorf("failed to scan function: %w", err)
		}
		fn.Docstring = stringPtr(fnDoc)

		if !classID.Valid {
			record.Functions = append(record.Functions, fn)
			continue
		}
		idx, ok := classIDs[classID.Int64]
		if !ok {
			return nil, fmt.Errorf("function %s references unknown class %d", fn.Name, classID.Int64)
		}
		record.Classes[idx].Methods = append(record.Classes[idx].Methods, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read functions of %s: %w", path, err)
	}

	return record, nil
}

// loadClasses appends the module's classes to record in order and returns a
// map from class row id to index in record.Classes.
func (r *Reader) loadClasses(moduleID int64, record *extract.ModuleRecord) (map[int64]int, error) {
	rows, err := sq.Select("id", "name", "docstring", "bases").
		From("classes").
		Where(sq.Eq{"module_id": moduleID}).
		OrderBy("ordinal").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]int)
	for rows.Next() {
		var id int64
		var doc sql.NullString
		var bases string
		class := extract.ClassRecord{Methods: []extract.FunctionRecord{}}

		if err := rows.Scan(&id, &class.Name, &doc, &bases); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		class.Docstring = stringPtr(doc)
		if err := json.Unmarshal([]byte(bases), &class.Bases); err != nil {
			return nil, fmt.Errorf("failed to decode bases of %s: %w", class.Name, err)
		}
		if class.Bases == nil {
			class.Bases = []string{}
		}

		ids[id] = len(record.Classes)
		record.Classes = append(record.Classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classes: %w", err)
	}
	return ids, nil
}

// ListRuns returns every stored run, most recent first.
func (r *Reader) ListRuns() ([]Run, error) {
	rows, err := sq.Select(
		"r.id", "r.started_at",
		"(SELECT COUNT(*) FROM modules m WHERE m.run_id = r.id)",
		"(SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)",
	).
		From("runs r").
		OrderBy("r.started_at DESC").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var startedAt string
		if err := rows.Scan(&run.ID, &startedAt, &run.Modules, &run.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the id of the most recent run.
func (r *Reader) LatestRun() (string, error) {
	var id string
	err := sq.Select("id").
		From("runs").
		OrderBy("started_at DESC").
		Limit(1).
		RunWith(r.db).
		QueryRow().
		Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no runs stored: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}
	return id, nil
}

// Failures returns the failures recorded for runID in insertion order.
func (r *Reader) Failures(runID string) ([]Failure, error) {
	rows, err := sq.Select("path", "message").
		From("failures").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("id").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	failures := []Failure{}
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Path, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read failures: %w", err)
	}
	return failures, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
