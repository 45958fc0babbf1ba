// Package gene defines the annotated-sequence model shared by the encoding
// and reassembly pipeline: sequence records, annotation intervals, the
// four-class label alphabet, and the strand primitives.
package gene

// Class is the per-base annotation class.
type Class int8

// The four base classes. Order matters: it is the column order of the
// one-hot label channel and of the confusion matrix.
const (
	Intergenic Class = iota
	UTR
	Exon
	Intron

	NumClasses = 4
)

// ClassNames maps a Class to its short report name.
var ClassNames = [NumClasses]string{"ig", "utr", "exon", "intron"}

// String returns the short name of the class.
func (c Class) String() string {
	if c < 0 || int(c) >= NumClasses {
		return "unknown"
	}
	return ClassNames[c]
}

// Strand marks the strand of a sequence record.
type Strand int8

const (
	Forward Strand = 1
	Reverse Strand = -1
)

// IsForward returns true if the strand is the forward strand.
func (s Strand) IsForward() bool {
	return s == Forward
}

// AnnotationInterval is a half-open base range [Start, End) tagged with a
// class. Gaps between intervals default to intergenic. Valid=false marks a
// biologically inconsistent region; it suppresses training influence but
// never changes the label.
type AnnotationInterval struct {
	Start int
	End   int
	Class Class
	Valid bool
	Phase int8 // reading frame 0-2 inside CDS, -1 elsewhere
}

// Record is one annotated contig or sequence as supplied by a sequence
// source. Immutable once read.
type Record struct {
	ID        string
	Species   string
	Strand    Strand
	Sequence  []byte
	Intervals []AnnotationInterval
}

// Length returns the sequence length in bases.
func (r *Record) Length() int {
	return len(r.Sequence)
}

// Source supplies sequence records for encoding. Next returns nil when the
// source is exhausted.
type Source interface {
	Next() (*Record, error)
	Close() error
}

var complement [256]byte

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	pairs := []struct{ a, b byte }{
		{'A', 'T'}, {'C', 'G'},
		{'R', 'Y'}, {'S', 'S'}, {'W', 'W'}, {'K', 'M'},
		{'B', 'V'}, {'D', 'H'}, {'N', 'N'},
	}
	for _, p := range pairs {
		complement[p.a] = p.b
		complement[p.b] = p.a
		complement[p.a+'a'-'A'] = p.b
		complement[p.b+'a'-'A'] = p.a
	}
}

// ReverseComplement returns the reverse complement of a nucleotide sequence.
// Unrecognized bytes complement to 'N'. The input is not modified.
func ReverseComplement(seq []byte) []byte {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = complement[seq[n-1-i]]
	}
	return out
}

// ReverseSlice reverses s in place. The encoder and the reassembler share
// this single primitive for strand normalization and its inverse, so the two
// directions cannot drift apart.
func ReverseSlice[S ~[]E, E any](s S) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
