package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/pydefs/internal/batch"
	"github.com/mvp-joe/pydefs/internal/discovery"
)

// Test Plan for Watcher:
// - New fails for a missing root and for missing collaborators
// - Writing an included file triggers one re-extraction with its record
// - Rapid writes are coalesced by the debounce into one batch
// - Non-included and ignored files never trigger re-extraction
// - New subdirectories are watched
// - Explicit file roots only react to that file
// - Stop is idempotent and safe before Start

type collector struct {
	mu      sync.Mutex
	batches [][]batch.Result
	ch      chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 16)}
}

func (c *collector) onResults(results []batch.Result) {
	c.mu.Lock()
	c.batches = append(c.batches, results)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T) []batch.Result {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for re-extraction")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[len(c.batches)-1]
}

func (c *collector) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-c.ch:
		t.Fatal("unexpected re-extraction")
	case <-time.After(d):
	}
}

func newWatcher(t *testing.T, roots []string, c *collector) *Watcher {
	t.Helper()

	fd, err := discovery.New([]string{"**/*.py"}, []string{"venv/**"})
	require.NoError(t, err)

	proc, err := batch.NewProcessor(batch.Options{Workers: 2})
	require.NoError(t, err)
	t.Cleanup(proc.Close)

	w, err := New(Options{
		Roots:     roots,
		Discovery: fd,
		Processor: proc,
		Debounce:  50 * time.Millisecond,
		OnResults: c.onResults,
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	w.Start(context.Background())
	return w
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	fd, err := discovery.New([]string{"**/*.py"}, nil)
	require.NoError(t, err)
	proc, err := batch.NewProcessor(batch.Options{})
	require.NoError(t, err)
	defer proc.Close()

	_, err = New(Options{Roots: []string{filepath.Join(t.TempDir(), "nope")}, Discovery: fd, Processor: proc})
	assert.Error(t, err)

	_, err = New(Options{Roots: []string{t.TempDir()}})
	assert.Error(t, err)
}

func TestWatcher_ReextractsChangedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCollector()
	newWatcher(t, []string{dir}, c)

	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def f():\n    pass\n"), 0644))

	results := c.wait(t)
	require.Len(t, results, 1)
	assert.Equal(t, path, results[0].Path)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "f", results[0].Module.Functions[0].Name)
}

func TestWatcher_DebouncesRapidWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCollector()
	newWatcher(t, []string{dir}, c)

	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("y = 2\n"), 0644))
	require.NoError(t, os.WriteFile(a, []byte("def a():\n    pass\n"), 0644))

	results := c.wait(t)
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].Path)
	assert.Equal(t, b, results[1].Path)
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "venv"), 0755))

	c := newCollector()
	newWatcher(t, []string{dir}, c)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "venv", "site.py"), []byte("x = 1\n"), 0644))

	c.expectNone(t, 300*time.Millisecond)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCollector()
	newWatcher(t, []string{dir}, c)

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the watcher time to register the new directory
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "m.py")
	require.NoError(t, os.WriteFile(path, []byte("class M:\n    pass\n"), 0644))

	results := c.wait(t)
	require.Len(t, results, 1)
	assert.Equal(t, path, results[0].Path)
}

func TestWatcher_ExplicitFileRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "target.py")
	require.NoError(t, os.WriteFile(target, []byte("x = 1\n"), 0644))

	c := newCollector()
	newWatcher(t, []string{target}, c)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.py"), []byte("x = 1\n"), 0644))
	c.expectNone(t, 300*time.Millisecond)

	require.NoError(t, os.WriteFile(target, []byte("def t():\n    pass\n"), 0644))
	results := c.wait(t)
	require.Len(t, results, 1)
	assert.Equal(t, target, results[0].Path)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	fd, err := discovery.New([]string{"**/*.py"}, nil)
	require.NoError(t, err)
	proc, err := batch.NewProcessor(batch.Options{})
	require.NoError(t, err)
	defer proc.Close()

	w, err := New(Options{Roots: []string{t.TempDir()}, Discovery: fd, Processor: proc})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
