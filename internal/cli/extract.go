package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pydefs/internal/batch"
	"github.com/mvp-joe/pydefs/internal/config"
	"github.com/mvp-joe/pydefs/internal/discovery"
	"github.com/mvp-joe/pydefs/internal/storage"
	"github.com/mvp-joe/pydefs/internal/watcher"
)

// ErrFilesFailed is returned when at least one file could not be extracted.
var ErrFilesFailed = errors.New("some files failed")

var (
	formatFlag  string
	indentFlag  int
	workersFlag int
	watchFlag   bool
	quietFlag   bool
	dbFlag      string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [paths...]",
	Short: "Extract definitions from Python files",
	Long: `Extract prints one JSON document per Python file describing its module
docstring, top-level classes and top-level functions.

Directories are searched for files matching paths.include (default **/*.py)
and not matching paths.ignore. With no arguments the current directory is
used. A file that cannot be read or parsed is reported on stderr as
"path: error" and the remaining files are still extracted; the command
exits non-zero if any file failed.

Examples:
  # Extract a single file
  pydefs extract models.py

  # Extract a package as JSON lines
  pydefs extract --format jsonl src/

  # Keep re-extracting files as they change
  pydefs extract --watch src/

  # Persist the results of this run
  pydefs extract --db defs.db src/
`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&formatFlag, "format", "f", config.FormatStream, "Output format: stream, array or jsonl")
	extractCmd.Flags().IntVar(&indentFlag, "indent", 2, "Spaces per indentation level (0 for compact output)")
	extractCmd.Flags().IntVarP(&workersFlag, "workers", "j", 0, "Files processed in parallel (0 = number of CPUs)")
	extractCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and re-extract them")
	extractCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	extractCmd.Flags().StringVar(&dbFlag, "db", "", "SQLite database to record the run in")
}

// extractOptions are the resolved inputs of one extract invocation.
type extractOptions struct {
	Config *config.Config
	Paths  []string
	Watch  bool
	Quiet  bool
}

func runExtract(cmd *cobra.Command, args []string) error {
	// Set up context with cancellation for Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyExtractFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	if len(args) == 0 {
		args = []string{"."}
	}

	return extract(ctx, extractOptions{
		Config: cfg,
		Paths:  args,
		Watch:  watchFlag,
		Quiet:  quietFlag,
	}, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// applyExtractFlags overrides configuration with explicitly set flags.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = formatFlag
	}
	if flags.Changed("indent") {
		cfg.Output.Indent = indentFlag
	}
	if flags.Changed("workers") {
		cfg.Processing.Workers = workersFlag
	}
	if flags.Changed("db") {
		cfg.Storage.Database = dbFlag
	}
}

// extract runs one extraction over opts.Paths, then keeps re-extracting
// changed files when opts.Watch is set, until ctx is cancelled.
func extract(ctx context.Context, opts extractOptions, stdout, stderr io.Writer) error {
	cfg := opts.Config

	encoder, err := newRecordEncoder(stdout, cfg.Output.Format, cfg.Output.Indent)
	if err != nil {
		return err
	}

	fd, err := discovery.New(cfg.Paths.Include, cfg.Paths.Ignore)
	if err != nil {
		return fmt.Errorf("failed to create file discovery: %w", err)
	}

	files, err := fd.Expand(opts.Paths)
	if err != nil {
		return err
	}

	processor, err := batch.NewProcessor(batch.Options{
		Workers:   cfg.Processing.Workers,
		CacheSize: cfg.Processing.CacheSize,
		Progress:  NewCLIProgressReporter(stderr, opts.Quiet),
	})
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	defer processor.Close()

	sink := &resultSink{encoder: encoder, stderr: stderr}
	if cfg.Storage.Database != "" {
		db, err := storage.Open(cfg.Storage.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		sink.writer = storage.NewWriter(db)
		if sink.runID, err = sink.writer.BeginRun(); err != nil {
			return err
		}
		if !opts.Quiet {
			fmt.Fprintf(stderr, "Recording run %s in %s\n", sink.runID, cfg.Storage.Database)
		}
	}

	total := len(files)
	failed := sink.emit(processor.Process(ctx, files))

	if opts.Watch && ctx.Err() == nil {
		w, err := watcher.New(watcher.Options{
			Roots:     opts.Paths,
			Discovery: fd,
			Processor: processor,
			Debounce:  time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
			OnResults: func(results []batch.Result) { sink.emit(results) },
		})
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}

		if !opts.Quiet {
			fmt.Fprintln(stderr, "Watching for changes (Ctrl+C to stop)...")
		}
		if err := w.Run(ctx); err != nil {
			log.Printf("Warning: watcher shutdown: %v", err)
		}
		return encoder.Close()
	}

	if err := encoder.Close(); err != nil {
		return err
	}
	if sink.err != nil {
		return sink.err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, failed, total)
	}
	return nil
}

// resultSink prints successful records, reports failures and optionally
// records both in storage.
type resultSink struct {
	encoder recordEncoder
	stderr  io.Writer
	writer  *storage.Writer
	runID   string

	// err is the first output or storage error; it ends the command.
	err error
}

// emit handles results in order and returns the number of failures.
func (s *resultSink) emit(results []batch.Result) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintln(s.stderr, failureLine(r))
			if s.writer != nil {
				s.record(s.writer.WriteFailure(s.runID, r.Path, r.Err))
			}
			continue
		}

		s.record(s.encoder.Encode(r.Path, r.Module))
		if s.writer != nil {
			s.record(s.writer.WriteResult(s.runID, r.Path, r.Module))
		}
	}
	return failed
}

func (s *resultSink) record(err error) {
	if err == nil {
		return
	}
	log.Printf("Error: %v", err)
	if s.err == nil {
		s.err = err
	}
}

// failureLine formats a failure as "path: error". Errors that already lead
// with the path are printed as is.
func failureLine(r batch.Result) string {
	msg := r.Err.Error()
	if strings.HasPrefix(msg, r.Path+":") {
		return msg
	}
	return r.Path + ": " + msg
}
