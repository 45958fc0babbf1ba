package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gannet-bio/gannet/internal/encode"
	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/window"
)

// fakeStore collects writes in memory so export runs need no database.
type fakeStore struct {
	windows   []window.Window
	finalized []window.Partition
	attrs     map[string]string
	writeErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{attrs: make(map[string]string)}
}

func (f *fakeStore) WriteWindows(windows []window.Window) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.windows = append(f.windows, windows...)
	return nil
}

func (f *fakeStore) FinalizePartition(p window.Partition) {
	f.finalized = append(f.finalized, p)
}

func (f *fakeStore) SetAttribute(key, value string) error {
	f.attrs[key] = value
	return nil
}

func trainOnlyConfig() window.Config {
	cfg := window.DefaultConfig(2, 5)
	cfg.ValFraction = 0
	return cfg
}

func newTestExporter(t *testing.T, store *fakeStore, cfg window.Config) *Exporter {
	t.Helper()
	win, err := window.NewWindower(cfg)
	require.NoError(t, err)
	return NewExporter(encode.NewEncoder(), win, store)
}

func exonRecord(id string, n int) *gene.Record {
	return &gene.Record{
		ID:       id,
		Species:  "athaliana",
		Strand:   gene.Forward,
		Sequence: bytes.Repeat([]byte("ACGT"), (n+3)/4)[:n],
		Intervals: []gene.AnnotationInterval{
			{Start: 4, End: 12, Class: gene.Exon, Valid: true, Phase: -1},
		},
	}
}

func TestExporter_Export(t *testing.T) {
	store := newFakeStore()
	exp := newTestExporter(t, store, trainOnlyConfig())

	src := gene.NewSliceSource(exonRecord("chr1", 20), exonRecord("chr2", 20))
	summary, err := exp.Export(src)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sequences)
	assert.Equal(t, 4, summary.Windows)
	assert.Equal(t, 4, summary.PerPartition[window.Train])
	assert.Empty(t, summary.Skipped)

	require.Len(t, store.windows, 4)
	// source order is preserved through the worker pool
	assert.Equal(t, "chr1", store.windows[0].SeqID)
	assert.Equal(t, 0, store.windows[0].Offset)
	assert.Equal(t, "chr1", store.windows[1].SeqID)
	assert.Equal(t, 10, store.windows[1].Offset)
	assert.Equal(t, "chr2", store.windows[2].SeqID)

	assert.Equal(t, []window.Partition{window.Train}, store.finalized)
}

func TestExporter_SkipsMalformedSequences(t *testing.T) {
	store := newFakeStore()
	exp := newTestExporter(t, store, trainOnlyConfig())

	bad := exonRecord("chr_bad", 20)
	bad.Intervals = []gene.AnnotationInterval{
		{Start: 10, End: 30, Class: gene.Exon, Valid: true, Phase: -1},
	}
	src := gene.NewSliceSource(exonRecord("chr1", 20), bad, exonRecord("chr3", 20))

	summary, err := exp.Export(src)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Sequences)
	assert.Equal(t, 4, summary.Windows)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "chr_bad", summary.Skipped[0].SeqID)

	var malformed *encode.MalformedAnnotationError
	assert.ErrorAs(t, summary.Skipped[0].Err, &malformed)

	for _, w := range store.windows {
		assert.NotEqual(t, "chr_bad", w.SeqID)
	}
}

func TestExporter_DropsFullyMaskedWindows(t *testing.T) {
	masked := &gene.Record{
		ID:       "chr_masked",
		Species:  "athaliana",
		Strand:   gene.Forward,
		Sequence: bytes.Repeat([]byte("ACGT"), 3)[:10],
		Intervals: []gene.AnnotationInterval{
			{Start: 0, End: 10, Class: gene.Exon, Valid: false, Phase: -1},
		},
	}

	store := newFakeStore()
	exp := newTestExporter(t, store, trainOnlyConfig())
	summary, err := exp.Export(gene.NewSliceSource(masked))
	require.NoError(t, err)
	assert.Zero(t, summary.Windows)
	assert.Empty(t, store.windows)
	assert.Empty(t, store.finalized)

	store = newFakeStore()
	exp = newTestExporter(t, store, trainOnlyConfig())
	exp.SetKeepErrors(true)
	summary, err = exp.Export(gene.NewSliceSource(masked))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Windows)
	require.Len(t, store.windows, 1)
	assert.True(t, store.windows[0].HasError())
}

func TestExporter_TestOnlyPartition(t *testing.T) {
	cfg := trainOnlyConfig()
	cfg.TestOnly = true

	store := newFakeStore()
	exp := newTestExporter(t, store, cfg)
	summary, err := exp.Export(gene.NewSliceSource(exonRecord("chr1", 20)))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PerPartition[window.Test])
	assert.Equal(t, []window.Partition{window.Test}, store.finalized)
	assert.Equal(t, "true", store.attrs["test_only"])
}

func TestExporter_WritesRunAttributes(t *testing.T) {
	store := newFakeStore()
	exp := newTestExporter(t, store, trainOnlyConfig())
	_, err := exp.Export(gene.NewSliceSource(exonRecord("chr1", 20)))
	require.NoError(t, err)

	assert.Equal(t, "2", store.attrs["pool_size"])
	assert.Equal(t, "5", store.attrs["chunk_size"])
	assert.Equal(t, "false", store.attrs["test_only"])
	assert.Equal(t, "false", store.attrs["keep_errors"])
	assert.NotEmpty(t, store.attrs["timestamp"])
}

func TestExporter_StoreFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.writeErr = assert.AnError
	exp := newTestExporter(t, store, trainOnlyConfig())

	_, err := exp.Export(gene.NewSliceSource(exonRecord("chr1", 20)))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExporter_ParallelWorkersPreserveOrder(t *testing.T) {
	store := newFakeStore()
	exp := newTestExporter(t, store, trainOnlyConfig())
	exp.SetWorkers(4)

	records := make([]*gene.Record, 16)
	for i := range records {
		records[i] = exonRecord(string(rune('a'+i)), 20)
	}
	summary, err := exp.Export(gene.NewSliceSource(records...))
	require.NoError(t, err)
	assert.Equal(t, 32, summary.Windows)

	var prev string
	for _, w := range store.windows {
		if w.Offset == 0 {
			assert.Greater(t, w.SeqID, prev)
			prev = w.SeqID
		}
	}
}
