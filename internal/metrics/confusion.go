// Package metrics accumulates a per-base confusion matrix over reference and
// predicted classes and derives precision/recall/F1 for the four base
// classes and their composite genic categories.
package metrics

import (
	"fmt"

	"github.com/gannet-bio/gannet/internal/gene"
)

// EmptyEvaluationSetError is returned when derived metrics are requested
// with zero accumulated counts.
type EmptyEvaluationSetError struct{}

func (EmptyEvaluationSetError) Error() string {
	return "empty evaluation set: no bases accumulated"
}

// ConfusionMatrix is a running 4x4 count of (reference class, predicted
// class) pairs. Accumulation is commutative and associative: matrices built
// over disjoint shards can be merged elementwise and equal the matrix built
// over the union.
type ConfusionMatrix struct {
	counts [gene.NumClasses][gene.NumClasses]uint64
}

// NewConfusionMatrix returns an empty matrix.
func NewConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{}
}

// Add counts one matched pair.
func (cm *ConfusionMatrix) Add(ref, pred gene.Class) {
	cm.counts[ref][pred]++
}

// AddProbs counts one pair from a reference class and a predicted
// probability distribution, taking the argmax as the call.
func (cm *ConfusionMatrix) AddProbs(ref gene.Class, probs [4]float32) {
	cm.Add(ref, Argmax(probs))
}

// AddSteps accumulates a window's worth of step-resolution pairs, skipping
// steps with zero sample weight (masked or padded).
func (cm *ConfusionMatrix) AddSteps(refs []gene.Class, probs [][4]float32, weights []float32) error {
	if len(refs) != len(probs) || len(refs) != len(weights) {
		return fmt.Errorf("mismatched step counts: %d labels, %d predictions, %d weights",
			len(refs), len(probs), len(weights))
	}
	for i, ref := range refs {
		if weights[i] == 0 {
			continue
		}
		cm.AddProbs(ref, probs[i])
	}
	return nil
}

// Merge adds another matrix's counts elementwise.
func (cm *ConfusionMatrix) Merge(other *ConfusionMatrix) {
	for i := range cm.counts {
		for j := range cm.counts[i] {
			cm.counts[i][j] += other.counts[i][j]
		}
	}
}

// Count returns one cell.
func (cm *ConfusionMatrix) Count(ref, pred gene.Class) uint64 {
	return cm.counts[ref][pred]
}

// Total returns the number of accumulated pairs.
func (cm *ConfusionMatrix) Total() uint64 {
	var n uint64
	for i := range cm.counts {
		for j := range cm.counts[i] {
			n += cm.counts[i][j]
		}
	}
	return n
}

// Normalized returns the row-normalized matrix. Rows with zero support are
// all zero, never NaN.
func (cm *ConfusionMatrix) Normalized() [gene.NumClasses][gene.NumClasses]float64 {
	var out [gene.NumClasses][gene.NumClasses]float64
	for i := range cm.counts {
		var sum uint64
		for _, c := range cm.counts[i] {
			sum += c
		}
		if sum == 0 {
			continue
		}
		for j, c := range cm.counts[i] {
			out[i][j] = float64(c) / float64(sum)
		}
	}
	return out
}

// Accuracy returns trace / total.
func (cm *ConfusionMatrix) Accuracy() (float64, error) {
	total := cm.Total()
	if total == 0 {
		return 0, EmptyEvaluationSetError{}
	}
	var trace uint64
	for i := range cm.counts {
		trace += cm.counts[i][i]
	}
	return float64(trace) / float64(total), nil
}

// Argmax returns the class with the highest probability, ties to the lowest
// class index.
func Argmax(probs [4]float32) gene.Class {
	best := gene.Class(0)
	for c := gene.Class(1); c < gene.NumClasses; c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best
}
