// Package batch runs the extraction engine over many files. Each file is
// independent: a read failure, a syntax error or an invariant violation is
// recorded on that file's Result and never affects its siblings.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mvp-joe/pydefs/internal/extract"
)

// ErrInvalidUTF8 indicates a file whose content is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

// Result is the outcome of extracting one file.
// Exactly one of Module and Err is set.
type Result struct {
	Path   string
	Module *extract.ModuleRecord
	Err    error
	Cached bool
}

// Options configures a Processor.
type Options struct {
	// Workers bounds the number of files processed at once. Zero or negative
	// means runtime.NumCPU().
	Workers int

	// CacheSize is the number of records memoized by content hash.
	// Zero disables the cache.
	CacheSize int

	Progress ProgressReporter

	// ReadFile loads a file. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// Processor extracts Module Records from files in parallel.
type Processor struct {
	workers  int
	cache    *RecordCache
	progress ProgressReporter
	readFile func(string) ([]byte, error)

	progressMu sync.Mutex
}

// NewProcessor creates a Processor.
func NewProcessor(opts Options) (*Processor, error) {
	p := &Processor{
		workers:  opts.Workers,
		progress: opts.Progress,
		readFile: opts.ReadFile,
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	if p.progress == nil {
		p.progress = &NoOpProgressReporter{}
	}
	if p.readFile == nil {
		p.readFile = os.ReadFile
	}

	if opts.CacheSize > 0 {
		cache, err := NewRecordCache(opts.CacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}

	return p, nil
}

// Process extracts every path and returns one Result per path, in the same
// order. Paths not yet started when ctx is cancelled fail with ctx.Err().
func (p *Processor) Process(ctx context.Context, paths []string) []Result {
	start := time.Now()
	results := make([]Result, len(paths))

	p.progress.OnBatchStart(len(paths))

	jobs := make(chan int)
	workers := p.workers
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result{Path: paths[i], Err: err}
				} else {
					results[i] = p.ProcessFile(paths[i])
				}
				p.reportFile(results[i])
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	p.progress.OnBatchComplete(Summarize(results), time.Since(start))
	return results
}

// ProcessFile reads and extracts a single file.
func (p *Processor) ProcessFile(path string) Result {
	content, err := p.readFile(path)
	if err != nil {
		return Result{Path: path, Err: fmt.Errorf("failed to read file: %w", err)}
	}
	return p.ProcessSource(path, content)
}

// ProcessSource extracts already loaded content attributed to name.
func (p *Processor) ProcessSource(name string, content []byte) Result {
	if !utf8.Valid(content) {
		return Result{Path: name, Err: fmt.Errorf("%s: %w", name, ErrInvalidUTF8)}
	}

	if p.cache != nil {
		if record, ok := p.cache.Get(content); ok {
			return Result{Path: name, Module: record, Cached: true}
		}
	}

	record, err := extract.ExtractModuleBytes(content, name)
	if err != nil {
		if errors.Is(err, extract.ErrInvariantViolation) {
			log.Printf("Warning: %v", err)
		}
		return Result{Path: name, Err: err}
	}

	if p.cache != nil {
		p.cache.Set(content, record)
	}
	return Result{Path: name, Module: record}
}

// Close releases the memo cache.
func (p *Processor) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
}

func (p *Processor) reportFile(r Result) {
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.progress.OnFileProcessed(r.Path, r.Err)
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Cached    int
}

// Summarize counts results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		if r.Cached {
			s.Cached++
		}
	}
	return s
}

// Failures returns the failed results in order.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
