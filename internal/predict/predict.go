// Package predict defines the boundary to the trained model: batched windows
// in, per-step class probabilities out, addressed so reassembly can
// re-associate results with source positions regardless of batch order.
package predict

import (
	"fmt"

	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/window"
)

// WindowResult carries one window's class-probability output together with
// the addressing metadata needed to invert the windowing.
type WindowResult struct {
	SeqID       string
	Species     string
	SeqLength   int
	Offset      int
	Strand      gene.Strand
	PoolSize    int
	ChunkSize   int
	PaddedBases int

	// Probs holds one probability distribution over the four classes per
	// step (or per base, when StepBases is 1).
	Probs [][4]float32
}

// StepBases returns how many bases each Probs entry covers.
func (r *WindowResult) StepBases() int {
	if len(r.Probs) == 0 {
		return r.PoolSize
	}
	covered := r.ChunkSize * r.PoolSize
	return covered / len(r.Probs)
}

// Predictor consumes a batch of windows and returns one result per window,
// in input order.
type Predictor interface {
	Predict(batch []*window.Window) ([]*WindowResult, error)
}

// resultFor copies the addressing metadata from a window into a result.
func resultFor(w *window.Window) *WindowResult {
	return &WindowResult{
		SeqID:       w.SeqID,
		Species:     w.Species,
		SeqLength:   w.SeqLength,
		Offset:      w.Offset,
		Strand:      w.Strand,
		PoolSize:    w.PoolSize,
		ChunkSize:   w.ChunkSize,
		PaddedBases: w.PaddedBases,
	}
}

// LabelPredictor is the identity oracle: it returns each window's own labels
// as probability-1 distributions. It anchors the round-trip property (encode,
// window, predict, reassemble reproduces the annotation exactly) and the
// calibration path of the evaluation report.
type LabelPredictor struct{}

// Predict returns one-hot distributions matching the window labels.
func (LabelPredictor) Predict(batch []*window.Window) ([]*WindowResult, error) {
	out := make([]*WindowResult, len(batch))
	for i, w := range batch {
		r := resultFor(w)
		r.Probs = w.LabelOneHot()
		out[i] = r
	}
	return out, nil
}

// Batcher groups a stream of windows into fixed-size batches for a
// predictor. Batch boundaries need not align with sequence boundaries.
type Batcher struct {
	predictor Predictor
	size      int
	pending   []*window.Window
}

// NewBatcher wraps a predictor with batching. Size must be positive.
func NewBatcher(p Predictor, size int) (*Batcher, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", size)
	}
	return &Batcher{predictor: p, size: size}, nil
}

// Add queues one window, running the predictor when a full batch is ready.
// It returns the results of any batch that ran, or nil.
func (b *Batcher) Add(w *window.Window) ([]*WindowResult, error) {
	b.pending = append(b.pending, w)
	if len(b.pending) < b.size {
		return nil, nil
	}
	return b.flush()
}

// Flush runs the predictor on any remaining partial batch.
func (b *Batcher) Flush() ([]*WindowResult, error) {
	if len(b.pending) == 0 {
		return nil, nil
	}
	return b.flush()
}

func (b *Batcher) flush() ([]*WindowResult, error) {
	batch := b.pending
	b.pending = nil
	results, err := b.predictor.Predict(batch)
	if err != nil {
		return nil, fmt.Errorf("predict batch of %d: %w", len(batch), err)
	}
	if len(results) != len(batch) {
		return nil, fmt.Errorf("predictor returned %d results for %d windows", len(results), len(batch))
	}
	return results, nil
}
