// Package encode turns annotated sequence records into the aligned per-base
// arrays consumed by the windower: nucleotide one-hot, class labels, and a
// validity mask, all in native 5'->3' orientation.
package encode

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gannet-bio/gannet/internal/gene"
)

// MalformedAnnotationError reports annotation intervals that are inconsistent
// with the sequence or with each other. The owning sequence is skipped;
// encoding of other sequences continues.
type MalformedAnnotationError struct {
	SeqID  string
	Detail string
}

func (e *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("malformed annotation for %s: %s", e.SeqID, e.Detail)
}

// EncodedSequence holds the base-aligned arrays for one sequence. Index i
// corresponds to base i of the record after strand normalization: reverse
// strand records are reverse-complemented so every downstream consumer sees
// uniform 5'->3' order.
type EncodedSequence struct {
	ID      string
	Species string
	Strand  gene.Strand
	Length  int

	// Nucleotides is the one-hot input channel, column order A C G T.
	// Ambiguous or unknown bases stay all-zero, which downstream weighting
	// treats the same as any other base; only the validity mask suppresses
	// training influence.
	Nucleotides [][4]float32

	// Classes holds the covering interval's class per base, intergenic
	// where no interval covers.
	Classes []gene.Class

	// Valid is false where the covering interval was flagged invalid.
	Valid []bool

	// Phases is the optional reading-frame one-hot channel (phase 0/1/2),
	// nil unless phase encoding is enabled.
	Phases [][3]float32
}

// GCContent returns the number of G or C bases in the encoded sequence.
func (e *EncodedSequence) GCContent() int {
	n := 0
	for _, b := range e.Nucleotides {
		if b[1] == 1 || b[2] == 1 {
			n++
		}
	}
	return n
}

// Encoder converts sequence records into encoded sequences.
type Encoder struct {
	encodePhase bool
	logger      *zap.Logger
}

// NewEncoder creates an encoder. Phase encoding is off by default.
func NewEncoder() *Encoder {
	return &Encoder{logger: zap.NewNop()}
}

// SetEncodePhase enables the reading-frame channel.
func (e *Encoder) SetEncodePhase(on bool) {
	e.encodePhase = on
}

// SetLogger sets the logger for per-sequence diagnostics.
func (e *Encoder) SetLogger(l *zap.Logger) {
	e.logger = l
}

// baseIndex maps a nucleotide byte to its one-hot column, or -1 for
// ambiguity codes and anything unrecognized.
var baseIndex [256]int8

func init() {
	for i := range baseIndex {
		baseIndex[i] = -1
	}
	for i, b := range []byte("ACGT") {
		baseIndex[b] = int8(i)
		baseIndex[b+'a'-'A'] = int8(i)
	}
}

// Encode produces the encoded arrays for one record. It fails with a
// MalformedAnnotationError if an interval exceeds the sequence bounds or two
// intervals assign different classes to one base.
func (e *Encoder) Encode(rec *gene.Record) (*EncodedSequence, error) {
	length := rec.Length()

	classes := make([]gene.Class, length) // zero value is Intergenic
	valid := make([]bool, length)
	for i := range valid {
		valid[i] = true
	}
	var phases [][3]float32
	if e.encodePhase {
		phases = make([][3]float32, length)
	}

	covered := make([]bool, length)
	for _, iv := range rec.Intervals {
		if iv.Start < 0 || iv.End > length || iv.Start > iv.End {
			return nil, &MalformedAnnotationError{
				SeqID:  rec.ID,
				Detail: fmt.Sprintf("interval [%d, %d) outside sequence of length %d", iv.Start, iv.End, length),
			}
		}
		for i := iv.Start; i < iv.End; i++ {
			if covered[i] && classes[i] != iv.Class {
				return nil, &MalformedAnnotationError{
					SeqID:  rec.ID,
					Detail: fmt.Sprintf("base %d assigned both %s and %s", i, classes[i], iv.Class),
				}
			}
			covered[i] = true
			classes[i] = iv.Class
			if !iv.Valid {
				valid[i] = false
			}
			if phases != nil && iv.Phase >= 0 && iv.Phase < 3 {
				phases[i][iv.Phase] = 1
			}
		}
	}

	seq := rec.Sequence
	if !rec.Strand.IsForward() {
		seq = gene.ReverseComplement(seq)
		gene.ReverseSlice(classes)
		gene.ReverseSlice(valid)
		if phases != nil {
			gene.ReverseSlice(phases)
		}
	}

	nucleotides := make([][4]float32, length)
	ambiguous := 0
	for i, b := range seq {
		if idx := baseIndex[b]; idx >= 0 {
			nucleotides[i][idx] = 1
		} else {
			ambiguous++
		}
	}
	if ambiguous > 0 {
		e.logger.Debug("ambiguous bases encoded as all-zero",
			zap.String("seq_id", rec.ID),
			zap.Int("count", ambiguous))
	}

	return &EncodedSequence{
		ID:          rec.ID,
		Species:     rec.Species,
		Strand:      rec.Strand,
		Length:      length,
		Nucleotides: nucleotides,
		Classes:     classes,
		Valid:       valid,
		Phases:      phases,
	}, nil
}
