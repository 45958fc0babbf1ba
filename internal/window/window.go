// Package window slices encoded sequences into the fixed-length,
// resolution-reduced windows fed to the model, and assigns them to
// train/validation/test partitions.
package window

import (
	"fmt"
	"hash/fnv"

	"github.com/gannet-bio/gannet/internal/encode"
	"github.com/gannet-bio/gannet/internal/gene"
)

// Partition identifies the dataset split a window belongs to.
type Partition string

const (
	Train      Partition = "train"
	Validation Partition = "val"
	Test       Partition = "test"
)

// IncompatibleGeometryError reports a pool/chunk configuration the model
// cannot consume. Fatal for the whole run, raised before any encoding.
type IncompatibleGeometryError struct {
	Detail string
}

func (e *IncompatibleGeometryError) Error() string {
	return "incompatible geometry: " + e.Detail
}

// Config holds the windowing parameters. It is immutable once a Windower is
// constructed; run several Windowers for several configurations.
type Config struct {
	// PoolSize is the number of consecutive bases per label/prediction step.
	PoolSize int
	// ChunkSize is the number of steps per window; window length in bases
	// is ChunkSize * PoolSize.
	ChunkSize int
	// ClassWeights scales the step weight by the step's label class.
	ClassWeights [gene.NumClasses]float32
	// TransitionWeights further scales steps that start a new class run,
	// keyed by (previous class, new class).
	TransitionWeights [gene.NumClasses][gene.NumClasses]float32
	// ValFraction is the share of sequences assigned to the validation
	// partition. The split is per sequence; one sequence never straddles
	// partitions.
	ValFraction float64
	// TestOnly sends every window of every sequence to the test partition.
	TestOnly bool
}

// DefaultConfig returns a Config with neutral weights.
func DefaultConfig(poolSize, chunkSize int) Config {
	cfg := Config{PoolSize: poolSize, ChunkSize: chunkSize, ValFraction: 0.2}
	for i := range cfg.ClassWeights {
		cfg.ClassWeights[i] = 1
	}
	for i := range cfg.TransitionWeights {
		for j := range cfg.TransitionWeights[i] {
			cfg.TransitionWeights[i][j] = 1
		}
	}
	return cfg
}

// Validate checks the geometry before any sequence is touched.
func (c Config) Validate() error {
	if c.PoolSize <= 0 {
		return &IncompatibleGeometryError{Detail: fmt.Sprintf("pool size %d must be positive", c.PoolSize)}
	}
	if c.ChunkSize <= 0 {
		return &IncompatibleGeometryError{Detail: fmt.Sprintf("chunk size %d must be positive", c.ChunkSize)}
	}
	if c.ValFraction < 0 || c.ValFraction >= 1 {
		return &IncompatibleGeometryError{Detail: fmt.Sprintf("validation fraction %g outside [0, 1)", c.ValFraction)}
	}
	return nil
}

// BasesPerWindow returns the window length in bases.
func (c Config) BasesPerWindow() int {
	return c.ChunkSize * c.PoolSize
}

// Window is one fixed-length slice of an encoded sequence. Nucleotides and
// Valid stay at base resolution; Labels and Weights are at step resolution
// after pooling. The tail window of a sequence may carry synthetic
// intergenic, zero-weight padding, recorded in PaddedBases so reassembly can
// strip it.
type Window struct {
	Partition Partition
	SeqID     string
	Species   string
	SeqLength int
	Offset    int
	Strand    gene.Strand
	PoolSize  int
	ChunkSize int

	Nucleotides [][4]float32 // len ChunkSize*PoolSize
	Labels      []gene.Class // len ChunkSize
	Weights     []float32    // len ChunkSize
	Valid       []bool       // len ChunkSize*PoolSize
	Phases      [][3]float32 // len ChunkSize*PoolSize, nil without phase encoding

	PaddedBases int
}

// HasError reports whether any step of the window has zero weight, the
// per-chunk error flag kept alongside the stored data.
func (w *Window) HasError() bool {
	for _, sw := range w.Weights {
		if sw == 0 {
			return true
		}
	}
	return false
}

// FullyIntergenic reports whether every step is labeled intergenic.
func (w *Window) FullyIntergenic() bool {
	for _, c := range w.Labels {
		if c != gene.Intergenic {
			return false
		}
	}
	return true
}

// LabelOneHot returns the step labels as a one-hot block.
func (w *Window) LabelOneHot() [][4]float32 {
	out := make([][4]float32, len(w.Labels))
	for i, c := range w.Labels {
		out[i][c] = 1
	}
	return out
}

// Windower slices encoded sequences according to one fixed configuration.
type Windower struct {
	cfg Config
}

// NewWindower validates the configuration and returns a windower.
func NewWindower(cfg Config) (*Windower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Windower{cfg: cfg}, nil
}

// Config returns the windower's configuration.
func (w *Windower) Config() Config {
	return w.cfg
}

// Slice partitions an encoded sequence into non-overlapping windows in
// ascending offset order, covering the whole padded sequence exactly once.
func (w *Windower) Slice(enc *encode.EncodedSequence) []Window {
	cfg := w.cfg
	wb := cfg.BasesPerWindow()
	nWindows := (enc.Length + wb - 1) / wb
	if nWindows == 0 {
		nWindows = 1
	}
	partition := w.assignPartition(enc.ID)

	windows := make([]Window, 0, nWindows)
	for n := 0; n < nWindows; n++ {
		offset := n * wb
		win := Window{
			Partition:   partition,
			SeqID:       enc.ID,
			Species:     enc.Species,
			SeqLength:   enc.Length,
			Offset:      offset,
			Strand:      enc.Strand,
			PoolSize:    cfg.PoolSize,
			ChunkSize:   cfg.ChunkSize,
			Nucleotides: make([][4]float32, wb),
			Labels:      make([]gene.Class, cfg.ChunkSize),
			Weights:     make([]float32, cfg.ChunkSize),
			Valid:       make([]bool, wb),
		}
		if enc.Phases != nil {
			win.Phases = make([][3]float32, wb)
		}

		real := enc.Length - offset
		if real > wb {
			real = wb
		}
		win.PaddedBases = wb - real

		copy(win.Nucleotides, enc.Nucleotides[offset:offset+real])
		copy(win.Valid, enc.Valid[offset:offset+real])
		if win.Phases != nil {
			copy(win.Phases, enc.Phases[offset:offset+real])
		}

		w.poolSteps(&win, enc, offset, real)
		windows = append(windows, win)
	}

	w.applyTransitionWeights(windows)
	return windows
}

// poolSteps fills the step-resolution label and weight channels for one
// window. A step's label is the majority class of its real bases, ties going
// to the lowest class index. A step's weight is zero if it contains any
// invalid or synthetic base, else the configured class weight of its label.
func (w *Windower) poolSteps(win *Window, enc *encode.EncodedSequence, offset, real int) {
	p := w.cfg.PoolSize
	for s := 0; s < w.cfg.ChunkSize; s++ {
		b0 := s * p
		b1 := b0 + p
		if b0 >= real {
			// fully synthetic tail step: intergenic, zero weight
			win.Labels[s] = gene.Intergenic
			continue
		}

		realEnd := b1
		if realEnd > real {
			realEnd = real
		}

		var counts [gene.NumClasses]int
		ok := realEnd == b1 // partially synthetic steps never train
		for b := b0; b < realEnd; b++ {
			counts[enc.Classes[offset+b]]++
			if !enc.Valid[offset+b] {
				ok = false
			}
		}

		label := gene.Intergenic
		for c := gene.Class(1); c < gene.NumClasses; c++ {
			if counts[c] > counts[label] {
				label = c
			}
		}
		win.Labels[s] = label
		if ok {
			win.Weights[s] = w.cfg.ClassWeights[label]
		}
	}
}

// applyTransitionWeights scales the first step of every class run by the
// configured (previous, next) factor. Runs are tracked across window
// boundaries within one sequence; the very first step of a sequence is not a
// transition.
func (w *Windower) applyTransitionWeights(windows []Window) {
	first := true
	var prev gene.Class
	for i := range windows {
		win := &windows[i]
		for s, label := range win.Labels {
			if !first && label != prev && win.Weights[s] != 0 {
				win.Weights[s] *= w.cfg.TransitionWeights[prev][label]
			}
			prev = label
			first = false
		}
	}
}

// assignPartition deterministically maps a sequence ID to its split.
func (w *Windower) assignPartition(seqID string) Partition {
	if w.cfg.TestOnly {
		return Test
	}
	h := fnv.New64a()
	h.Write([]byte(seqID))
	frac := float64(h.Sum64()%10000) / 10000
	if frac < w.cfg.ValFraction {
		return Validation
	}
	return Train
}
