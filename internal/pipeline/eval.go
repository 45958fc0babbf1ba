package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/metrics"
	"github.com/gannet-bio/gannet/internal/predict"
	"github.com/gannet-bio/gannet/internal/reassemble"
	"github.com/gannet-bio/gannet/internal/window"
)

// WindowScanner is the store surface the evaluation path reads from.
type WindowScanner interface {
	ScanWindows(window.Partition, func(*window.Window) error) error
}

// PredictionSink persists reassembled prediction tracks. Optional.
type PredictionSink interface {
	WritePrediction(seqID, species string, probs [][4]float32) error
}

// EvalResult is the outcome of one evaluation pass. Positional is nil unless
// a bucket resolution was configured.
type EvalResult struct {
	Matrix      *metrics.ConfusionMatrix
	Reassembled int
	Failures    []SequenceError
	Positional  []metrics.PositionBucket
}

// Evaluator drives the read path: store -> predictor -> reassembler ->
// confusion matrix, with optional persistence of the reassembled tracks.
type Evaluator struct {
	predictor     predict.Predictor
	batchSize     int
	sink          PredictionSink
	posResolution int
	logger        *zap.Logger
}

// NewEvaluator creates an evaluator over the given predictor.
func NewEvaluator(p predict.Predictor, batchSize int) *Evaluator {
	return &Evaluator{predictor: p, batchSize: batchSize, logger: zap.NewNop()}
}

// SetPredictionSink persists every reassembled sequence to the sink.
func (e *Evaluator) SetPredictionSink(s PredictionSink) {
	e.sink = s
}

// SetPositionalResolution accumulates per-base accuracy bucketed by offset
// within the sequence, at the given bucket width in bases. 0 disables it.
func (e *Evaluator) SetPositionalResolution(n int) {
	e.posResolution = n
}

// SetLogger sets the logger for progress messages.
func (e *Evaluator) SetLogger(l *zap.Logger) {
	e.logger = l
}

// stepKey matches a prediction result back to its source window.
type stepKey struct {
	seqID  string
	offset int
}

type stepRef struct {
	labels  []gene.Class
	weights []float32
}

// Evaluate streams a partition's windows through the predictor, accumulates
// the step-resolution confusion matrix, and reassembles per-sequence
// probability tracks. Reassembly failures are per sequence and collected;
// predictor or store failures abort.
func (e *Evaluator) Evaluate(scanner WindowScanner, partition window.Partition) (*EvalResult, error) {
	batcher, err := predict.NewBatcher(e.predictor, e.batchSize)
	if err != nil {
		return nil, err
	}
	reassembler := reassemble.New()
	reassembler.SetLogger(e.logger)

	result := &EvalResult{Matrix: metrics.NewConfusionMatrix()}
	refs := make(map[stepKey]stepRef)

	var positional *metrics.PositionalAccumulator
	var baseRefs map[string][]gene.Class
	if e.posResolution > 0 {
		positional, err = metrics.NewPositionalAccumulator(e.posResolution)
		if err != nil {
			return nil, err
		}
		baseRefs = make(map[string][]gene.Class)
	}

	handleResults := func(results []*predict.WindowResult) error {
		for _, res := range results {
			key := stepKey{seqID: res.SeqID, offset: res.Offset}
			ref, ok := refs[key]
			if !ok {
				return fmt.Errorf("prediction for unknown window %s@%d", res.SeqID, res.Offset)
			}
			delete(refs, key)

			if err := result.Matrix.AddSteps(ref.labels, res.Probs, ref.weights); err != nil {
				return err
			}

			track, err := reassembler.Add(res)
			if err != nil {
				var incomplete *reassemble.IncompleteReassemblyError
				if errors.As(err, &incomplete) {
					result.Failures = append(result.Failures, SequenceError{SeqID: res.SeqID, Err: err})
					continue
				}
				return err
			}
			if track == nil {
				continue
			}
			result.Reassembled++
			if positional != nil {
				seqRefs := baseRefs[track.SeqID]
				delete(baseRefs, track.SeqID)
				if !track.Strand.IsForward() {
					// track is back in source coordinates; match it
					gene.ReverseSlice(seqRefs)
				}
				if err := positional.Add(seqRefs, track.Probs); err != nil {
					return err
				}
			}
			if e.sink != nil {
				if err := e.sink.WritePrediction(track.SeqID, track.Species, track.Probs); err != nil {
					return err
				}
			}
		}
		return nil
	}

	err = scanner.ScanWindows(partition, func(w *window.Window) error {
		refs[stepKey{seqID: w.SeqID, offset: w.Offset}] = stepRef{labels: w.Labels, weights: w.Weights}
		if positional != nil {
			seqRefs, ok := baseRefs[w.SeqID]
			if !ok {
				seqRefs = make([]gene.Class, w.SeqLength)
				baseRefs[w.SeqID] = seqRefs
			}
			// broadcast step labels over their pooled bases, clipped at
			// the real sequence length
			for s, label := range w.Labels {
				b0 := w.Offset + s*w.PoolSize
				for b := b0; b < b0+w.PoolSize && b < w.SeqLength; b++ {
					seqRefs[b] = label
				}
			}
		}
		results, err := batcher.Add(w)
		if err != nil {
			return err
		}
		return handleResults(results)
	})
	if err != nil {
		return nil, err
	}

	results, err := batcher.Flush()
	if err != nil {
		return nil, err
	}
	if err := handleResults(results); err != nil {
		return nil, err
	}

	if positional != nil {
		result.Positional = positional.Buckets()
	}

	for _, ierr := range reassembler.Incomplete() {
		var incomplete *reassemble.IncompleteReassemblyError
		if errors.As(ierr, &incomplete) {
			result.Failures = append(result.Failures, SequenceError{SeqID: incomplete.SeqID, Err: ierr})
		}
	}

	e.logger.Info("evaluation finished",
		zap.String("partition", string(partition)),
		zap.Uint64("bases", result.Matrix.Total()),
		zap.Int("reassembled", result.Reassembled),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}
