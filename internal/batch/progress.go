package batch

import "time"

// ProgressReporter receives callbacks while a batch is processed.
// Callbacks may arrive from multiple goroutines; OnFileProcessed calls are
// serialized by the processor.
type ProgressReporter interface {
	// OnBatchStart is called once before any file is processed.
	OnBatchStart(totalFiles int)

	// OnFileProcessed is called after each file, successful or not.
	OnFileProcessed(path string, err error)

	// OnBatchComplete is called once after every file has a result.
	OnBatchComplete(summary Summary, duration time.Duration)
}

// NoOpProgressReporter is a progress reporter that does nothing.
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnBatchStart(totalFiles int)                             {}
func (n *NoOpProgressReporter) OnFileProcessed(path string, err error)                  {}
func (n *NoOpProgressReporter) OnBatchComplete(summary Summary, duration time.Duration) {}
