package logger

import (
	"time"
)

// BatchTracker reports progress for long-running row-by-row operations such
// as a large statement import. It logs at a fixed row interval to avoid
// flooding the output on big files.
type BatchTracker struct {
	logger    Logger
	operation string
	total     int
	processed int
	interval  int
	started   time.Time
}

// NewBatchTracker creates a tracker for an operation over total rows.
// An interval of 0 disables intermediate reporting.
func NewBatchTracker(log Logger, operation string, total, interval int) *BatchTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	return &BatchTracker{
		logger:    log.WithComponent("batch_tracker"),
		operation: operation,
		total:     total,
		interval:  interval,
		started:   time.Now(),
	}
}

// Increment records one processed row and emits a progress log entry when
// the configured interval is reached.
func (bt *BatchTracker) Increment() {
	bt.processed++

	if bt.interval <= 0 || bt.processed%bt.interval != 0 {
		return
	}

	bt.logger.WithFields(Fields{
		"operation": bt.operation,
		"processed": bt.processed,
		"total":     bt.total,
		"percent":   bt.Percent(),
		"elapsed":   time.Since(bt.started).Round(time.Millisecond).String(),
	}).Info("Batch progress")
}

// Percent returns the completion percentage, or 0 when the total is unknown.
func (bt *BatchTracker) Percent() float64 {
	if bt.total <= 0 {
		return 0
	}
	return float64(bt.processed) / float64(bt.total) * 100
}

// Processed returns the number of rows recorded so far.
func (bt *BatchTracker) Processed() int {
	return bt.processed
}

// Finish logs a final summary entry for the operation.
func (bt *BatchTracker) Finish() {
	bt.logger.WithFields(Fields{
		"operation": bt.operation,
		"processed": bt.processed,
		"total":     bt.total,
		"elapsed":   time.Since(bt.started).Round(time.Millisecond).String(),
	}).Info("Batch completed")
}
