package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/predict"
	"github.com/gannet-bio/gannet/internal/window"
)

// fakeScanner replays exported windows without a database.
type fakeScanner struct {
	windows []window.Window
}

func (f *fakeScanner) ScanWindows(p window.Partition, fn func(*window.Window) error) error {
	for i := range f.windows {
		if f.windows[i].Partition != p {
			continue
		}
		if err := fn(&f.windows[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeSink struct {
	tracks map[string][][4]float32
}

func (f *fakeSink) WritePrediction(seqID, species string, probs [][4]float32) error {
	if f.tracks == nil {
		f.tracks = make(map[string][][4]float32)
	}
	f.tracks[seqID] = probs
	return nil
}

// exportWindows runs records through the write path and returns what was
// stored, so the read path is tested against real window geometry.
func exportWindows(t *testing.T, records ...*gene.Record) []window.Window {
	t.Helper()
	store := newFakeStore()
	exp := newTestExporter(t, store, trainOnlyConfig())
	_, err := exp.Export(gene.NewSliceSource(records...))
	require.NoError(t, err)
	return store.windows
}

func TestEvaluator_OracleIsPerfect(t *testing.T) {
	scanner := &fakeScanner{windows: exportWindows(t,
		exonRecord("chr1", 20), exonRecord("chr2", 23))}

	ev := NewEvaluator(predict.LabelPredictor{}, 3)
	result, err := ev.Evaluate(scanner, window.Train)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Reassembled)
	assert.Empty(t, result.Failures)

	acc, err := result.Matrix.Accuracy()
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	// the oracle never confuses classes
	for ref := 0; ref < gene.NumClasses; ref++ {
		for pred := 0; pred < gene.NumClasses; pred++ {
			if ref != pred {
				assert.Zero(t, result.Matrix.Count(gene.Class(ref), gene.Class(pred)))
			}
		}
	}
	assert.NotZero(t, result.Matrix.Count(gene.Exon, gene.Exon))
	assert.NotZero(t, result.Matrix.Count(gene.Intergenic, gene.Intergenic))
}

func TestEvaluator_WritesPredictionTracks(t *testing.T) {
	scanner := &fakeScanner{windows: exportWindows(t, exonRecord("chr1", 23))}
	sink := &fakeSink{}

	ev := NewEvaluator(predict.LabelPredictor{}, 8)
	ev.SetPredictionSink(sink)
	result, err := ev.Evaluate(scanner, window.Train)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Reassembled)
	track, ok := sink.tracks["chr1"]
	require.True(t, ok)
	// padding is stripped on reassembly
	assert.Len(t, track, 23)
}

func TestEvaluator_PositionalBuckets(t *testing.T) {
	scanner := &fakeScanner{windows: exportWindows(t,
		exonRecord("chr1", 20), exonRecord("chr2", 23))}

	ev := NewEvaluator(predict.LabelPredictor{}, 4)
	ev.SetPositionalResolution(10)
	result, err := ev.Evaluate(scanner, window.Train)
	require.NoError(t, err)

	// offsets 0-9 and 10-19 cover both sequences, 20-22 only the longer one
	require.Len(t, result.Positional, 3)
	assert.Equal(t, 0, result.Positional[0].Offset)
	assert.Equal(t, uint64(20), result.Positional[0].Bases)
	assert.Equal(t, uint64(20), result.Positional[1].Bases)
	assert.Equal(t, 20, result.Positional[2].Offset)
	assert.Equal(t, uint64(3), result.Positional[2].Bases)

	// the oracle's pooled calls match the broadcast references everywhere
	for _, b := range result.Positional {
		assert.InDelta(t, 1.0, b.Accuracy, 1e-9, "offset %d", b.Offset)
	}
}

func TestEvaluator_PositionalReverseStrand(t *testing.T) {
	rec := exonRecord("chr_rev", 20)
	rec.Strand = gene.Reverse

	scanner := &fakeScanner{windows: exportWindows(t, rec)}
	ev := NewEvaluator(predict.LabelPredictor{}, 4)
	ev.SetPositionalResolution(5)
	result, err := ev.Evaluate(scanner, window.Train)
	require.NoError(t, err)

	// references and reassembled track must line up in source coordinates
	require.Len(t, result.Positional, 4)
	for _, b := range result.Positional {
		assert.Equal(t, uint64(5), b.Bases)
		assert.InDelta(t, 1.0, b.Accuracy, 1e-9, "offset %d", b.Offset)
	}
}

func TestEvaluator_PositionalOffByDefault(t *testing.T) {
	scanner := &fakeScanner{windows: exportWindows(t, exonRecord("chr1", 20))}
	ev := NewEvaluator(predict.LabelPredictor{}, 4)
	result, err := ev.Evaluate(scanner, window.Train)
	require.NoError(t, err)
	assert.Nil(t, result.Positional)
}

func TestEvaluator_ReportsMissingWindows(t *testing.T) {
	windows := exportWindows(t, exonRecord("chr1", 20))
	require.Len(t, windows, 2)

	scanner := &fakeScanner{windows: windows[:1]}
	ev := NewEvaluator(predict.LabelPredictor{}, 4)
	result, err := ev.Evaluate(scanner, window.Train)
	require.NoError(t, err)

	assert.Zero(t, result.Reassembled)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "chr1", result.Failures[0].SeqID)
}

func TestEvaluator_EmptyPartition(t *testing.T) {
	scanner := &fakeScanner{}
	ev := NewEvaluator(predict.LabelPredictor{}, 4)
	result, err := ev.Evaluate(scanner, window.Validation)
	require.NoError(t, err)

	assert.Zero(t, result.Reassembled)
	assert.Empty(t, result.Failures)
	_, err = result.Matrix.Accuracy()
	assert.Error(t, err)
}

func TestEvaluator_InvalidBatchSize(t *testing.T) {
	ev := NewEvaluator(predict.LabelPredictor{}, 0)
	_, err := ev.Evaluate(&fakeScanner{}, window.Train)
	assert.Error(t, err)
}
