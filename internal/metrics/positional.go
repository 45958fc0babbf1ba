package metrics

import (
	"fmt"

	"github.com/gannet-bio/gannet/internal/gene"
)

// PositionBucket is the pointwise accuracy of one base-offset range across
// all accumulated sequences. Used to spot accuracy decay toward window
// boundaries.
type PositionBucket struct {
	Offset   int
	Bases    uint64
	Correct  uint64
	Accuracy float64
}

// PositionalAccumulator bins matched per-base calls by their offset within
// the sequence, at a fixed bucket resolution.
type PositionalAccumulator struct {
	resolution int
	bases      []uint64
	correct    []uint64
}

// NewPositionalAccumulator creates an accumulator with the given bucket
// width in bases.
func NewPositionalAccumulator(resolution int) (*PositionalAccumulator, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("bucket resolution %d must be positive", resolution)
	}
	return &PositionalAccumulator{resolution: resolution}, nil
}

// Add accumulates one sequence's reference classes against its reassembled
// probability track.
func (pa *PositionalAccumulator) Add(refs []gene.Class, probs [][4]float32) error {
	if len(refs) != len(probs) {
		return fmt.Errorf("mismatched lengths: %d reference bases, %d predictions", len(refs), len(probs))
	}
	for i, ref := range refs {
		bucket := i / pa.resolution
		for bucket >= len(pa.bases) {
			pa.bases = append(pa.bases, 0)
			pa.correct = append(pa.correct, 0)
		}
		pa.bases[bucket]++
		if Argmax(probs[i]) == ref {
			pa.correct[bucket]++
		}
	}
	return nil
}

// Buckets returns the accumulated per-offset accuracies.
func (pa *PositionalAccumulator) Buckets() []PositionBucket {
	out := make([]PositionBucket, len(pa.bases))
	for i := range pa.bases {
		out[i] = PositionBucket{
			Offset:  i * pa.resolution,
			Bases:   pa.bases[i],
			Correct: pa.correct[i],
		}
		if pa.bases[i] > 0 {
			out[i].Accuracy = float64(pa.correct[i]) / float64(pa.bases[i])
		}
	}
	return out
}
