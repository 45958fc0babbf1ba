// Package pipeline orchestrates the two data paths: annotated sequences
// through encoding and windowing into the dataset store, and stored windows
// through a predictor, reassembly, and metrics.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gannet-bio/gannet/internal/encode"
	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/window"
)

// WindowWriter is the store surface the export path needs.
type WindowWriter interface {
	WriteWindows([]window.Window) error
	FinalizePartition(window.Partition)
	SetAttribute(key, value string) error
}

// SequenceError records one per-sequence failure. Failures are collected and
// reported as a batch summary; one malformed record never aborts the run.
type SequenceError struct {
	SeqID string
	Err   error
}

func (e SequenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.SeqID, e.Err)
}

// RunSummary reports what an export run produced.
type RunSummary struct {
	Sequences    int
	Windows      int
	PerPartition map[window.Partition]int
	Skipped      []SequenceError
}

// Exporter drives the write path: source -> encoder -> windower -> store.
type Exporter struct {
	encoder    *encode.Encoder
	windower   *window.Windower
	store      WindowWriter
	workers    int
	keepErrors bool
	logger     *zap.Logger
}

// NewExporter creates an exporter. Geometry is validated by the windower's
// constructor, before any sequence is read.
func NewExporter(enc *encode.Encoder, win *window.Windower, store WindowWriter) *Exporter {
	return &Exporter{
		encoder:  enc,
		windower: win,
		store:    store,
		logger:   zap.NewNop(),
	}
}

// SetWorkers sets the encoding worker count; 0 means one per CPU.
func (e *Exporter) SetWorkers(n int) {
	e.workers = n
}

// SetKeepErrors keeps windows whose sample weights are all zero. By default
// such fully masked windows are dropped at export.
func (e *Exporter) SetKeepErrors(keep bool) {
	e.keepErrors = keep
}

// SetLogger sets the logger for progress and summary messages.
func (e *Exporter) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Export encodes and windows every sequence from the source and writes the
// windows to the store, in deterministic source order. Malformed sequences
// are skipped and reported in the summary; store failures abort.
func (e *Exporter) Export(src gene.Source) (*RunSummary, error) {
	items := make(chan workItem)
	readErr := make(chan error, 1)

	go func() {
		defer close(items)
		seq := 0
		for {
			rec, err := src.Next()
			if err != nil {
				readErr <- err
				return
			}
			if rec == nil {
				readErr <- nil
				return
			}
			items <- workItem{seq: seq, record: rec}
			seq++
		}
	}()

	summary := &RunSummary{PerPartition: make(map[window.Partition]int)}
	touched := make(map[window.Partition]bool)

	results := e.parallelSlice(items, e.workers)
	err := orderedCollect(results, func(r workResult) error {
		summary.Sequences++
		if r.err != nil {
			var malformed *encode.MalformedAnnotationError
			if errors.As(r.err, &malformed) {
				summary.Skipped = append(summary.Skipped, SequenceError{SeqID: r.record.ID, Err: r.err})
				e.logger.Warn("skipping sequence", zap.String("seq_id", r.record.ID), zap.Error(r.err))
				return nil
			}
			return r.err
		}

		windows := r.windows
		if !e.keepErrors {
			kept := windows[:0]
			for i := range windows {
				if !fullyMasked(&windows[i]) {
					kept = append(kept, windows[i])
				}
			}
			windows = kept
		}
		if len(windows) == 0 {
			return nil
		}

		if err := e.store.WriteWindows(windows); err != nil {
			return fmt.Errorf("write windows for %s: %w", r.record.ID, err)
		}
		p := windows[0].Partition
		touched[p] = true
		summary.Windows += len(windows)
		summary.PerPartition[p] += len(windows)
		e.logger.Info("exported sequence",
			zap.String("seq_id", r.record.ID),
			zap.Int("length", r.record.Length()),
			zap.Int("windows", len(windows)),
			zap.String("partition", string(p)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := <-readErr; err != nil {
		return nil, fmt.Errorf("read sequence source: %w", err)
	}

	for p := range touched {
		e.store.FinalizePartition(p)
	}
	if err := e.writeRunAttrs(); err != nil {
		return nil, err
	}

	e.logger.Info("export finished",
		zap.Int("sequences", summary.Sequences),
		zap.Int("windows", summary.Windows),
		zap.Int("skipped", len(summary.Skipped)))
	return summary, nil
}

// writeRunAttrs records the run configuration alongside the data.
func (e *Exporter) writeRunAttrs() error {
	cfg := e.windower.Config()
	attrs := map[string]string{
		"timestamp":   time.Now().Format(time.RFC3339),
		"pool_size":   fmt.Sprintf("%d", cfg.PoolSize),
		"chunk_size":  fmt.Sprintf("%d", cfg.ChunkSize),
		"test_only":   fmt.Sprintf("%t", cfg.TestOnly),
		"keep_errors": fmt.Sprintf("%t", e.keepErrors),
	}
	for k, v := range attrs {
		if err := e.store.SetAttribute(k, v); err != nil {
			return fmt.Errorf("set attribute %s: %w", k, err)
		}
	}
	return nil
}

func fullyMasked(w *window.Window) bool {
	for _, sw := range w.Weights {
		if sw != 0 {
			return false
		}
	}
	return true
}
