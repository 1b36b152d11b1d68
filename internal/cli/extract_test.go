package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/pydefs/internal/batch"
	"github.com/mvp-joe/pydefs/internal/config"
	extractpkg "github.com/mvp-joe/pydefs/internal/extract"
)

// Test Plan for extract command:
// - stream output prints one indented bare record per file
// - array output is one JSON array of {path, module}
// - jsonl output is one compact {path, module} per line
// - a failing file is reported as "path: error" on stderr, the rest are
//   still printed and ErrFilesFailed is returned
// - directories are expanded with include/ignore patterns
// - --db records the run and show prints the stored record back
// - failureLine avoids repeating a path the error already leads with
// - applyExtractFlags only overrides flags that were set
// - version prints the build information

func writePy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runExtractFor(t *testing.T, cfg *config.Config, paths ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := extract(context.Background(), extractOptions{
		Config: cfg,
		Paths:  paths,
		Quiet:  true,
	}, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestExtract_StreamFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writePy(t, dir, "mod.py", "\"\"\"Mod.\"\"\"\ndef f():\n    pass\n")

	stdout, stderr, err := runExtractFor(t, config.Default(), path)
	require.NoError(t, err)
	assert.Empty(t, stderr)

	want := `{
  "docstring": "Mod.",
  "classes": [],
  "functions": [
    {
      "name": "f",
      "docstring": null,
      "content": "def f():\n    pass"
    }
  ]
}
`
	assert.Equal(t, want, stdout)
}

func TestExtract_ArrayFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writePy(t, dir, "a.py", "class A:\n    pass\n")
	b := writePy(t, dir, "b.py", "def b():\n    pass\n")

	cfg := config.Default()
	cfg.Output.Format = config.FormatArray

	stdout, _, err := runExtractFor(t, cfg, a, b)
	require.NoError(t, err)

	var docs []fileRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, a, docs[0].Path)
	assert.Equal(t, "A", docs[0].Module.Classes[0].Name)
	assert.Equal(t, b, docs[1].Path)
	assert.Equal(t, "b", docs[1].Module.Functions[0].Name)
}

func TestExtract_ArrayFormatEmpty(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Output.Format = config.FormatArray

	stdout, _, err := runExtractFor(t, cfg, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)
}

func TestExtract_JSONLFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writePy(t, dir, "a.py", "x = 1\n")
	b := writePy(t, dir, "b.py", "\"\"\"B <&>.\"\"\"\n")

	cfg := config.Default()
	cfg.Output.Format = "JSONL"

	stdout, _, err := runExtractFor(t, cfg, a, b)
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first fileRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, a, first.Path)
	assert.Nil(t, first.Module.Docstring)

	// No HTML escaping
	assert.Contains(t, lines[1], `"B <&>."`)
}

func TestExtract_FailuresDoNotStopBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writePy(t, dir, "good.py", "def ok():\n    pass\n")
	bad := writePy(t, dir, "bad.py", "def broken(:\n    pass\n")
	missing := filepath.Join(dir, "missing.py")

	cfg := config.Default()
	cfg.Output.Format = config.FormatJSONL

	stdout, stderr, err := runExtractFor(t, cfg, bad, missing, good)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFilesFailed))
	assert.Contains(t, err.Error(), "2 of 3")

	assert.Contains(t, stdout, good)
	assert.NotContains(t, stdout, bad)

	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], bad+":"), lines[0])
	assert.Contains(t, lines[0], "syntax error")
	assert.True(t, strings.HasPrefix(lines[1], missing+":"), lines[1])
}

func TestExtract_ExpandsDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePy(t, dir, "pkg/a.py", "def a():\n    pass\n")
	writePy(t, dir, "pkg/readme.txt", "not python")
	writePy(t, dir, "venv/lib/site.py", "def site():\n    pass\n")

	cfg := config.Default()
	cfg.Output.Format = config.FormatJSONL

	stdout, _, err := runExtractFor(t, cfg, dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"name":"a"`)
	assert.NotContains(t, stdout, "site")
}

func TestExtract_RecordsRunAndShow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writePy(t, dir, "good.py", "class C(Base):\n    \"\"\"C.\"\"\"\n    def m(self):\n        return 1\n")
	bad := writePy(t, dir, "bad.py", "class A(:\n")
	dbPath := filepath.Join(dir, "defs.db")

	cfg := config.Default()
	cfg.Storage.Database = dbPath

	stdout, _, err := runExtractFor(t, cfg, good, bad)
	require.Error(t, err)

	var printed extractpkg.ModuleRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &printed))

	var shown bytes.Buffer
	require.NoError(t, show(dbPath, "", good, 2, &shown))
	assert.Equal(t, stdout, shown.String())

	var runs bytes.Buffer
	require.NoError(t, listRuns(dbPath, &runs))
	assert.Contains(t, runs.String(), "1 modules  1 failures")

	assert.Error(t, show(dbPath, "", bad, 2, &bytes.Buffer{}))
}

func TestExtract_InvalidFormat(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Output.Format = "xml"

	_, _, err := runExtractFor(t, cfg, t.TempDir())
	assert.True(t, errors.Is(err, config.ErrInvalidFormat))
}

func TestFailureLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		err  error
		want string
	}{
		{"a.py", errors.New("a.py:1:2: syntax error: boom"), "a.py:1:2: syntax error: boom"},
		{"a.py", errors.New("failed to read file: denied"), "a.py: failed to read file: denied"},
		{"a.py", errors.New("a.pyc: other"), "a.py: a.pyc: other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, failureLine(batch.Result{Path: tt.path, Err: tt.err}))
	}
}

func TestApplyExtractFlags(t *testing.T) {
	// Mutates package-level flag state; not parallel
	require.NoError(t, extractCmd.Flags().Set("format", "jsonl"))
	require.NoError(t, extractCmd.Flags().Set("workers", "3"))
	t.Cleanup(func() {
		extractCmd.Flags().Set("format", config.FormatStream)
		extractCmd.Flags().Set("workers", "0")
		extractCmd.Flags().Lookup("format").Changed = false
		extractCmd.Flags().Lookup("workers").Changed = false
	})

	cfg := config.Default()
	cfg.Output.Indent = 7
	applyExtractFlags(extractCmd, cfg)

	assert.Equal(t, config.FormatJSONL, cfg.Output.Format)
	assert.Equal(t, 3, cfg.Processing.Workers)
	assert.Equal(t, 7, cfg.Output.Indent, "unset flags keep configured values")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "pydefs dev")
}
