package pysyntax

import "fmt"

// SyntaxError reports source text that does not parse as Python.
type SyntaxError struct {
	// Source identifies the input, usually a file path.
	Source string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: syntax error: %s", e.Source, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error: %s", e.Source, e.Line, e.Column, e.Msg)
}
