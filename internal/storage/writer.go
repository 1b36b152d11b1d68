package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mvp-joe/pydefs/internal/extract"
)

// Writer records extraction runs.
type Writer struct {
	db  *sql.DB
	now func() time.Time
}

// NewWriter creates a Writer. DB should have schema already created.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db, now: time.Now}
}

// BeginRun registers a new run and returns its id.
func (w *Writer) BeginRun() (string, error) {
	id := uuid.New().String()

	_, err := sq.Insert("runs").
		Columns("id", "started_at").
		Values(id, w.now().UTC().Format(time.RFC3339Nano)).
		RunWith(w.db).
		Exec()
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return id, nil
}

// WriteResult stores record as the module at path within runID, replacing any
// module previously stored for the same path in that run. The module and all
// of its classes and functions are written atomically.
func (w *Writer) WriteResult(runID, path string, record *extract.ModuleRecord) error {
	if record == nil {
		return fmt.Errorf("nil record for %s", path)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = sq.Delete("modules").
		Where(sq.Eq{"run_id": runID, "path": path}).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to replace module %s: %w", path, err)
	}

	res, err := sq.Insert("modules").
		Columns("run_id", "path", "docstring").
		Values(runID, path, nullString(record.Docstring)).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert module %s: %w", path, err)
	}
	moduleID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get module id for %s: %w", path, err)
	}

	for i, class := range record.Classes {
		bases, err := json.Marshal(class.Bases)
		if err != nil {
			return fmt.Errorf("failed to encode bases of %s: %w", class.Name, err)
		}

		res, err := sq.Insert("classes").
			Columns("module_id", "ordinal", "name", "docstring", "bases").
			Values(moduleID, i, class.Name, nullString(class.Docstring), string(bases)).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert class %s: %w", class.Name, err)
		}
		classID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get class id for %s: %w", class.Name, err)
		}

		if err := insertFunctions(tx, moduleID, &classID, class.Methods); err != nil {
			return err
		}
	}

	if err := insertFunctions(tx, moduleID, nil, record.Functions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit module %s: %w", path, err)
	}
	return nil
}

// WriteFailure records that path could not be extracted in runID.
func (w *Writer) WriteFailure(runID, path string, failure error) error {
	_, err := sq.Insert("failures").
		Columns("run_id", "path", "message").
		Values(runID, path, failure.Error()).
		RunWith(w.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", path, err)
	}
	return nil
}

// insertFunctions writes functions in order. classID is nil for module-level
// functions.
func insertFunctions(tx *sql.Tx, moduleID int64, classID *int64, functions []extract.FunctionRecord) error {
	for i, fn := range functions {
		var owner any
		if classID != nil {
			owner = *classID
		}

		_, err := sq.Insert("functions").
			Columns("module_id", "class_id", "ordinal", "name", "docstring", "content").
			Values(moduleID, owner, i, fn.Name, nullString(fn.Docstring), fn.Content).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert function %s: %w", fn.Name, err)
		}
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
