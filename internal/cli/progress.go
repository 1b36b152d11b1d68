package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/pydefs/internal/batch"
)

// CLIProgressReporter draws a progress bar on w while a batch runs.
type CLIProgressReporter struct {
	w       io.Writer
	quiet   bool
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(w io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{w: w, quiet: quiet}
}

// OnBatchStart shows a bar for batches of more than one file.
func (c *CLIProgressReporter) OnBatchStart(totalFiles int) {
	if c.quiet || totalFiles < 2 {
		c.fileBar = nil
		return
	}

	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Extracting files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.w)
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(path string, err error) {
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnBatchComplete(summary batch.Summary, duration time.Duration) {
	if c.fileBar == nil {
		return
	}
	c.fileBar.Finish()
	c.fileBar = nil

	fmt.Fprintf(c.w, "✓ Extracted %d of %d files in %.1fs", summary.Succeeded, summary.Total, duration.Seconds())
	if summary.Cached > 0 {
		fmt.Fprintf(c.w, " (%d from cache)", summary.Cached)
	}
	if summary.Failed > 0 {
		fmt.Fprintf(c.w, ", %d failed", summary.Failed)
	}
	fmt.Fprintln(c.w)
}
