package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mvp-joe/pydefs/internal/config"
	extractpkg "github.com/mvp-joe/pydefs/internal/extract"
)

// recordEncoder writes Module Records in one of the output formats.
type recordEncoder interface {
	Encode(path string, record *extractpkg.ModuleRecord) error
	// Close terminates the output. It must be called once after the last
	// Encode even when nothing was encoded.
	Close() error
}

// fileRecord tags a record with the file it came from in array and jsonl
// output.
type fileRecord struct {
	Path   string                `json:"path"`
	Module *extractpkg.ModuleRecord `json:"module"`
}

// newRecordEncoder returns the encoder for format:
//   - stream: one bare Module Record document per file
//   - array:  a single JSON array of {"path", "module"} objects
//   - jsonl:  one compact {"path", "module"} object per line
//
// spaces is the indentation per level for stream and array; zero prints
// compact JSON.
func newRecordEncoder(w io.Writer, format string, spaces int) (recordEncoder, error) {
	indent := strings.Repeat(" ", spaces)

	switch strings.ToLower(format) {
	case config.FormatStream:
		return &streamEncoder{enc: newJSONEncoder(w, "", indent)}, nil
	case config.FormatArray:
		return &arrayEncoder{w: w, indent: indent}, nil
	case config.FormatJSONL:
		return &streamEncoder{enc: newJSONEncoder(w, "", ""), withPath: true}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidFormat, format)
	}
}

func newJSONEncoder(w io.Writer, prefix, indent string) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent(prefix, indent)
	}
	return enc
}

type streamEncoder struct {
	enc      *json.Encoder
	withPath bool
}

func (e *streamEncoder) Encode(path string, record *extractpkg.ModuleRecord) error {
	if e.withPath {
		return e.enc.Encode(fileRecord{Path: path, Module: record})
	}
	return e.enc.Encode(record)
}

func (e *streamEncoder) Close() error { return nil }

// arrayEncoder buffers nothing: elements are written as they arrive and the
// brackets are emitted around them.
type arrayEncoder struct {
	w      io.Writer
	indent string
	count  int
}

func (e *arrayEncoder) Encode(path string, record *extractpkg.ModuleRecord) error {
	var data []byte
	var err error
	if e.indent != "" {
		data, err = marshalIndent(fileRecord{Path: path, Module: record}, e.indent, e.indent)
	} else {
		data, err = marshal(fileRecord{Path: path, Module: record})
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	sep := ","
	if e.count == 0 {
		sep = "["
	}
	if e.indent != "" {
		sep += "\n" + e.indent
	}
	e.count++

	if _, err := io.WriteString(e.w, sep); err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

func (e *arrayEncoder) Close() error {
	closing := "]\n"
	switch {
	case e.count == 0:
		closing = "[]\n"
	case e.indent != "":
		closing = "\n]\n"
	}
	_, err := io.WriteString(e.w, closing)
	return err
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	return marshalIndent(v, "", "")
}

func marshalIndent(v any, prefix, indent string) ([]byte, error) {
	var sb strings.Builder
	enc := newJSONEncoder(&sb, prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSuffix(sb.String(), "\n")), nil
}
