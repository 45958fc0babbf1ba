package gene

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileRecord is the on-disk YAML shape of one annotated sequence.
type fileRecord struct {
	ID        string         `yaml:"id"`
	Species   string         `yaml:"species"`
	Strand    string         `yaml:"strand"` // "+" or "-"
	Sequence  string         `yaml:"sequence"`
	Intervals []fileInterval `yaml:"intervals"`
}

type fileInterval struct {
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Class string `yaml:"class"`
	Valid *bool  `yaml:"valid"` // defaults to true when omitted
	Phase *int8  `yaml:"phase"` // defaults to -1 when omitted
}

// FileSource reads annotated sequence records from a YAML stream, one
// document per record.
type FileSource struct {
	f   *os.File
	dec *yaml.Decoder
}

// OpenFile opens a YAML sequence file as a Source.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sequence file: %w", err)
	}
	return &FileSource{f: f, dec: yaml.NewDecoder(f)}, nil
}

// Next returns the next record, or nil at end of file.
func (s *FileSource) Next() (*Record, error) {
	var fr fileRecord
	if err := s.dec.Decode(&fr); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode sequence record: %w", err)
	}
	return fr.toRecord()
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}

func (fr *fileRecord) toRecord() (*Record, error) {
	strand := Forward
	switch fr.Strand {
	case "", "+", "1":
		strand = Forward
	case "-", "-1":
		strand = Reverse
	default:
		return nil, fmt.Errorf("record %s: unknown strand %q", fr.ID, fr.Strand)
	}

	rec := &Record{
		ID:       fr.ID,
		Species:  fr.Species,
		Strand:   strand,
		Sequence: []byte(fr.Sequence),
	}
	for _, fi := range fr.Intervals {
		cls, err := ParseClass(fi.Class)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", fr.ID, err)
		}
		iv := AnnotationInterval{Start: fi.Start, End: fi.End, Class: cls, Valid: true, Phase: -1}
		if fi.Valid != nil {
			iv.Valid = *fi.Valid
		}
		if fi.Phase != nil {
			iv.Phase = *fi.Phase
		}
		rec.Intervals = append(rec.Intervals, iv)
	}
	return rec, nil
}

// ParseClass parses a class name as used in sequence files and reports.
func ParseClass(name string) (Class, error) {
	switch name {
	case "ig", "intergenic":
		return Intergenic, nil
	case "utr":
		return UTR, nil
	case "exon", "cds":
		return Exon, nil
	case "intron":
		return Intron, nil
	}
	return 0, fmt.Errorf("unknown class %q", name)
}

// SliceSource serves records from memory. Used by tests and as the adapter
// for callers that already hold records.
type SliceSource struct {
	records []*Record
	next    int
}

// NewSliceSource returns a Source over the given records.
func NewSliceSource(records ...*Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or nil when exhausted.
func (s *SliceSource) Next() (*Record, error) {
	if s.next >= len(s.records) {
		return nil, nil
	}
	r := s.records[s.next]
	s.next++
	return r, nil
}

// Close is a no-op for in-memory sources.
func (s *SliceSource) Close() error { return nil }
