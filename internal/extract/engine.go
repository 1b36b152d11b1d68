// Package extract builds the structural description of a Python module:
// its docstring, module-level classes with their methods, and module-level
// functions with their verbatim source.
package extract

import (
	"fmt"

	"github.com/mvp-joe/pydefs/internal/pysyntax"
)

// ExtractModule parses source and returns its Module Record.
// name identifies the source in errors. A *pysyntax.SyntaxError is returned
// unchanged when the source does not parse; no partial record is returned on
// any error.
func ExtractModule(source, name string) (*ModuleRecord, error) {
	return ExtractModuleBytes([]byte(source), name)
}

// ExtractModuleBytes is ExtractModule for callers that already hold bytes.
func ExtractModuleBytes(source []byte, name string) (*ModuleRecord, error) {
	mod, err := pysyntax.Parse(source, name)
	if err != nil {
		return nil, err
	}

	e := &extractor{source: source, name: name}
	return e.module(mod)
}

// extractor holds the inputs of a single extraction call.
type extractor struct {
	source []byte
	name   string
}

func (e *extractor) module(mod *pysyntax.Module) (*ModuleRecord, error) {
	record := &ModuleRecord{
		Docstring: docstring(mod.Body),
		Classes:   []ClassRecord{},
		Functions: []FunctionRecord{},
	}

	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *pysyntax.ClassDef:
			class, err := e.class(s)
			if err != nil {
				return nil, err
			}
			record.Classes = append(record.Classes, class)
		case *pysyntax.FunctionDef:
			fn, err := e.function(s)
			if err != nil {
				return nil, err
			}
			record.Functions = append(record.Functions, fn)
		case *pysyntax.StringExpr, *pysyntax.Other:
			// not represented
		default:
			return nil, e.invariant("unknown statement type %T", stmt)
		}
	}

	return record, nil
}

func (e *extractor) class(node *pysyntax.ClassDef) (ClassRecord, error) {
	class := ClassRecord{
		Name:      node.Name,
		Docstring: docstring(node.Body),
		Bases:     append([]string{}, node.Bases...),
		Methods:   []FunctionRecord{},
	}

	for _, stmt := range node.Body {
		switch s := stmt.(type) {
		case *pysyntax.FunctionDef:
			method, err := e.function(s)
			if err != nil {
				return ClassRecord{}, err
			}
			class.Methods = append(class.Methods, method)
		case *pysyntax.ClassDef, *pysyntax.StringExpr, *pysyntax.Other:
			// nested classes and attributes are skipped
		default:
			return ClassRecord{}, e.invariant("unknown statement type %T in class %s", stmt, node.Name)
		}
	}

	return class, nil
}

func (e *extractor) function(node *pysyntax.FunctionDef) (FunctionRecord, error) {
	content, err := e.slice(node.Span())
	if err != nil {
		return FunctionRecord{}, err
	}

	return FunctionRecord{
		Name:      node.Name,
		Docstring: docstring(node.Body),
		Content:   content,
	}, nil
}

// slice returns the original text covered by span.
func (e *extractor) slice(span pysyntax.Span) (string, error) {
	if span.StartByte < 0 || span.EndByte < span.StartByte || span.EndByte > len(e.source) {
		return "", e.invariant("span [%d:%d] outside source of %d bytes", span.StartByte, span.EndByte, len(e.source))
	}
	return string(e.source[span.StartByte:span.EndByte]), nil
}

func (e *extractor) invariant(format string, args ...any) error {
	return &InvariantError{Source: e.name, Detail: fmt.Sprintf(format, args...)}
}

func docstring(body []pysyntax.Stmt) *string {
	doc, ok := pysyntax.Docstring(body)
	if !ok {
		return nil
	}
	return &doc
}
