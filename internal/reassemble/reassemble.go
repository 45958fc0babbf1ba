// Package reassemble inverts the windowing: it stitches per-window model
// output back into one contiguous per-base probability track per sequence,
// in original source coordinates.
package reassemble

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/predict"
)

// IncompleteReassemblyError reports missing or duplicate prediction windows
// for one sequence. Fatal for that sequence only.
type IncompleteReassemblyError struct {
	SeqID  string
	Detail string
}

func (e *IncompleteReassemblyError) Error() string {
	return fmt.Sprintf("incomplete reassembly for %s: %s", e.SeqID, e.Detail)
}

// Reassembled is one sequence's per-base class probabilities with padding
// stripped and strand normalization undone.
type Reassembled struct {
	SeqID   string
	Species string
	Strand  gene.Strand
	Probs   [][4]float32
}

type seqBuffer struct {
	species     string
	strand      gene.Strand
	seqLength   int
	windowBases int
	results     map[int]*predict.WindowResult
}

func (b *seqBuffer) expected() int {
	n := (b.seqLength + b.windowBases - 1) / b.windowBases
	if n == 0 {
		n = 1
	}
	return n
}

// Reassembler buffers prediction windows per sequence and emits one
// reassembled result as soon as every window of a sequence has arrived.
// Arrival order does not matter; memory is bounded by the windows of the
// in-flight sequences, not the dataset.
type Reassembler struct {
	pending map[string]*seqBuffer
	logger  *zap.Logger
}

// New creates a reassembler.
func New() *Reassembler {
	return &Reassembler{
		pending: make(map[string]*seqBuffer),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for per-sequence diagnostics.
func (r *Reassembler) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Add buffers one prediction window. When it completes its sequence, the
// reassembled track is returned and the buffer released; otherwise both
// return values are nil. A duplicate offset fails that sequence's
// reassembly and discards its buffer.
func (r *Reassembler) Add(res *predict.WindowResult) (*Reassembled, error) {
	windowBases := res.ChunkSize * res.PoolSize
	if windowBases <= 0 {
		return nil, &IncompleteReassemblyError{SeqID: res.SeqID, Detail: "window geometry missing from prediction"}
	}
	if res.Offset%windowBases != 0 || res.Offset < 0 {
		return nil, &IncompleteReassemblyError{
			SeqID:  res.SeqID,
			Detail: fmt.Sprintf("offset %d not aligned to window length %d", res.Offset, windowBases),
		}
	}

	buf, ok := r.pending[res.SeqID]
	if !ok {
		buf = &seqBuffer{
			species:     res.Species,
			strand:      res.Strand,
			seqLength:   res.SeqLength,
			windowBases: windowBases,
			results:     make(map[int]*predict.WindowResult),
		}
		r.pending[res.SeqID] = buf
	}
	if _, dup := buf.results[res.Offset]; dup {
		delete(r.pending, res.SeqID)
		return nil, &IncompleteReassemblyError{
			SeqID:  res.SeqID,
			Detail: fmt.Sprintf("duplicate window at offset %d", res.Offset),
		}
	}
	buf.results[res.Offset] = res

	if len(buf.results) < buf.expected() {
		return nil, nil
	}
	delete(r.pending, res.SeqID)
	return r.assemble(res.SeqID, buf)
}

// assemble places every window's step vectors at their base positions,
// broadcasting pooled steps over their underlying bases, then strips the
// recorded tail padding and undoes the encoder's strand reversal.
func (r *Reassembler) assemble(seqID string, buf *seqBuffer) (*Reassembled, error) {
	probs := make([][4]float32, buf.seqLength)
	for offset, res := range buf.results {
		if offset+buf.windowBases-res.PaddedBases > buf.seqLength {
			return nil, &IncompleteReassemblyError{
				SeqID:  seqID,
				Detail: fmt.Sprintf("window at offset %d overruns sequence of length %d", offset, buf.seqLength),
			}
		}
		stepBases := res.StepBases()
		for s, dist := range res.Probs {
			b0 := offset + s*stepBases
			for b := b0; b < b0+stepBases && b < buf.seqLength; b++ {
				probs[b] = dist
			}
		}
	}

	if !buf.strand.IsForward() {
		gene.ReverseSlice(probs)
	}

	r.logger.Debug("reassembled sequence",
		zap.String("seq_id", seqID),
		zap.Int("length", buf.seqLength),
		zap.Int("windows", len(buf.results)))

	return &Reassembled{
		SeqID:   seqID,
		Species: buf.species,
		Strand:  buf.strand,
		Probs:   probs,
	}, nil
}

// Incomplete reports the sequences still waiting for windows, with the
// offsets that are missing. Call after the prediction stream ends; each
// entry is an IncompleteReassemblyError.
func (r *Reassembler) Incomplete() []error {
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		buf := r.pending[id]
		var missing []int
		for n := 0; n < buf.expected(); n++ {
			if _, ok := buf.results[n*buf.windowBases]; !ok {
				missing = append(missing, n*buf.windowBases)
			}
		}
		errs = append(errs, &IncompleteReassemblyError{
			SeqID:  id,
			Detail: fmt.Sprintf("missing windows at offsets %v", missing),
		})
	}
	return errs
}

// Reset abandons all in-flight buffers. Safe at any time; buffers hold no
// external resources.
func (r *Reassembler) Reset() {
	r.pending = make(map[string]*seqBuffer)
}
