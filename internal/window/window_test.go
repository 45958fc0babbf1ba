package window

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gannet-bio/gannet/internal/encode"
	"github.com/gannet-bio/gannet/internal/gene"
)

// encodeClasses builds an encoded sequence from a class string where each
// rune is one base: i=intergenic, u=utr, e=exon, n=intron.
func encodeFromClasses(t *testing.T, id string, classStr string) *encode.EncodedSequence {
	t.Helper()
	classByRune := map[rune]gene.Class{
		'i': gene.Intergenic, 'u': gene.UTR, 'e': gene.Exon, 'n': gene.Intron,
	}

	rec := &gene.Record{
		ID:       id,
		Strand:   gene.Forward,
		Sequence: []byte(strings.Repeat("A", len(classStr))),
	}
	enc, err := encode.NewEncoder().Encode(rec)
	require.NoError(t, err)
	for i, r := range classStr {
		cls, ok := classByRune[r]
		require.True(t, ok, "unknown class rune %q", r)
		enc.Classes[i] = cls
	}
	return enc
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero pool size", func(c *Config) { c.PoolSize = 0 }, true},
		{"negative pool size", func(c *Config) { c.PoolSize = -2 }, true},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, true},
		{"val fraction 1", func(c *Config) { c.ValFraction = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(2, 5)
			tt.mutate(&cfg)
			_, err := NewWindower(cfg)
			if tt.wantErr {
				var geom *IncompatibleGeometryError
				assert.ErrorAs(t, err, &geom)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// The 20-base scenario: pool 2, chunk 5 (10-base windows), classes
// ig*6 utr*4 exon*10 -> exactly two windows, no padding.
func TestSlice_ExactFit(t *testing.T) {
	enc := encodeFromClasses(t, "seq20", "iiiiiiuuuueeeeeeeeee")

	cfg := DefaultConfig(2, 5)
	cfg.TestOnly = true
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	windows := w.Slice(enc)
	require.Len(t, windows, 2)

	assert.Equal(t, 0, windows[0].Offset)
	assert.Equal(t, 10, windows[1].Offset)
	assert.Equal(t, 0, windows[0].PaddedBases)
	assert.Equal(t, 0, windows[1].PaddedBases)

	assert.Equal(t, []gene.Class{gene.Intergenic, gene.Intergenic, gene.Intergenic, gene.UTR, gene.UTR}, windows[0].Labels)
	assert.Equal(t, []gene.Class{gene.Exon, gene.Exon, gene.Exon, gene.Exon, gene.Exon}, windows[1].Labels)

	for _, win := range windows {
		assert.False(t, win.HasError())
	}
}

// The 23-base scenario: a third window appears with 7 synthetic intergenic
// bases of zero weight.
func TestSlice_TailPadding(t *testing.T) {
	enc := encodeFromClasses(t, "seq23", "iiiiiiuuuueeeeeeeeeeeee")
	require.Equal(t, 23, enc.Length)

	cfg := DefaultConfig(2, 5)
	cfg.TestOnly = true
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	windows := w.Slice(enc)
	require.Len(t, windows, 3)

	last := windows[2]
	assert.Equal(t, 20, last.Offset)
	assert.Equal(t, 7, last.PaddedBases)

	// first step covers bases 20-21 (real), second step base 22 plus one
	// synthetic base, the rest are fully synthetic
	assert.Equal(t, gene.Exon, last.Labels[0])
	assert.NotZero(t, last.Weights[0])
	for s := 1; s < 5; s++ {
		assert.Zero(t, last.Weights[s], "step %d spans synthetic bases", s)
	}
	for s := 2; s < 5; s++ {
		assert.Equal(t, gene.Intergenic, last.Labels[s], "fully synthetic step %d", s)
	}
	assert.True(t, last.HasError())
}

// Coverage invariant: stripped of padding, window base ranges tile
// [0, length) with no gaps and no overlaps.
func TestSlice_CoverageInvariant(t *testing.T) {
	for _, length := range []int{1, 9, 10, 11, 20, 23, 37} {
		enc := encodeFromClasses(t, "cov", strings.Repeat("e", length))

		cfg := DefaultConfig(2, 5)
		cfg.TestOnly = true
		w, err := NewWindower(cfg)
		require.NoError(t, err)

		covered := make([]int, length)
		for _, win := range w.Slice(enc) {
			realBases := len(win.Nucleotides) - win.PaddedBases
			for b := win.Offset; b < win.Offset+realBases; b++ {
				require.Less(t, b, length, "length %d", length)
				covered[b]++
			}
		}
		for b, n := range covered {
			assert.Equal(t, 1, n, "length %d base %d", length, b)
		}
	}
}

func TestSlice_WeightZeroing(t *testing.T) {
	enc := encodeFromClasses(t, "masked", "eeeeeeeeee")
	enc.Valid[3] = false // invalidates the step covering bases 2-3

	cfg := DefaultConfig(2, 5)
	cfg.TestOnly = true
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	windows := w.Slice(enc)
	require.Len(t, windows, 1)

	assert.Equal(t, float32(0), windows[0].Weights[1])
	for _, s := range []int{0, 2, 3, 4} {
		assert.NotZero(t, windows[0].Weights[s])
	}
}

func TestSlice_MajorityVoteAndTieBreak(t *testing.T) {
	// pool 4: one step of euue has 2 utr, 2 exon; the tie goes to the
	// lower class index (utr)
	enc := encodeFromClasses(t, "tie", "euue")

	cfg := DefaultConfig(4, 1)
	cfg.TestOnly = true
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	windows := w.Slice(enc)
	require.Len(t, windows, 1)
	assert.Equal(t, gene.UTR, windows[0].Labels[0])

	// clear majority wins
	enc = encodeFromClasses(t, "maj", "ennn")
	windows = w.Slice(enc)
	assert.Equal(t, gene.Intron, windows[0].Labels[0])
}

func TestSlice_ClassAndTransitionWeights(t *testing.T) {
	enc := encodeFromClasses(t, "weights", "iieeee")

	cfg := DefaultConfig(2, 3)
	cfg.TestOnly = true
	cfg.ClassWeights = [4]float32{0.8, 1.4, 1.2, 1.2}
	cfg.TransitionWeights[gene.Intergenic][gene.Exon] = 10

	w, err := NewWindower(cfg)
	require.NoError(t, err)

	windows := w.Slice(enc)
	require.Len(t, windows, 1)

	assert.InDelta(t, 0.8, windows[0].Weights[0], 1e-6)
	// boundary step entering exon from intergenic gets the transition factor
	assert.InDelta(t, 12.0, windows[0].Weights[1], 1e-6)
	assert.InDelta(t, 1.2, windows[0].Weights[2], 1e-6)
}

func TestAssignPartition(t *testing.T) {
	cfg := DefaultConfig(2, 5)
	cfg.ValFraction = 0.5
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	// deterministic per sequence: same ID always lands in the same split
	first := w.assignPartition("chr1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, w.assignPartition("chr1"))
	}

	// with a 0.5 fraction over many IDs, both splits must occur
	seen := map[Partition]bool{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		seen[w.assignPartition(id)] = true
	}
	assert.True(t, seen[Train])
	assert.True(t, seen[Validation])
}

func TestAssignPartition_TestOnly(t *testing.T) {
	cfg := DefaultConfig(2, 5)
	cfg.TestOnly = true
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	for _, id := range []string{"chr1", "chr2", "chr3"} {
		assert.Equal(t, Test, w.assignPartition(id))
	}
}

func TestWindow_Flags(t *testing.T) {
	enc := encodeFromClasses(t, "flags", "iiiiiiiiii")

	cfg := DefaultConfig(2, 5)
	cfg.TestOnly = true
	w, err := NewWindower(cfg)
	require.NoError(t, err)

	windows := w.Slice(enc)
	require.Len(t, windows, 1)
	assert.True(t, windows[0].FullyIntergenic())

	oneHot := windows[0].LabelOneHot()
	require.Len(t, oneHot, 5)
	assert.Equal(t, [4]float32{1, 0, 0, 0}, oneHot[0])
}
