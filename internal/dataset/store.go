// Package dataset persists training windows and reassembled predictions in
// DuckDB, keyed by (partition, sequence, offset). Writes are append-only and
// serialized per partition; ordered reads are safe once a partition is
// finalized.
package dataset

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/window"
)

// Store manages a DuckDB database of windows, predictions, and run
// attributes.
type Store struct {
	db   *sql.DB
	path string

	mu        sync.Mutex
	writing   map[window.Partition]*sync.Mutex
	finalized map[window.Partition]bool
}

// Open opens or creates a DuckDB database at the given path. An empty path
// opens an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{
		db:        db,
		path:      path,
		writing:   make(map[window.Partition]*sync.Mutex),
		finalized: make(map[window.Partition]bool),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS windows (
			partition VARCHAR,
			seq_id VARCHAR,
			species VARCHAR,
			seq_length BIGINT,
			base_offset BIGINT,
			strand TINYINT,
			pool_size INTEGER,
			chunk_size INTEGER,
			padded_bases INTEGER,
			has_error BOOLEAN,
			fully_intergenic BOOLEAN,
			nucleotides BLOB,
			labels BLOB,
			weights BLOB,
			valid BLOB,
			phases BLOB,
			PRIMARY KEY (partition, seq_id, base_offset)
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			seq_id VARCHAR PRIMARY KEY,
			species VARCHAR,
			seq_length BIGINT,
			probs BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS run_attrs (
			key VARCHAR PRIMARY KEY,
			value VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// partitionLock returns the single-writer lock for a partition.
func (s *Store) partitionLock(p window.Partition) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized[p] {
		return nil, fmt.Errorf("partition %s already finalized", p)
	}
	m, ok := s.writing[p]
	if !ok {
		m = &sync.Mutex{}
		s.writing[p] = m
	}
	return m, nil
}

// WriteWindows batch-inserts windows using the DuckDB appender. All windows
// in one call must belong to the same partition; calls for the same
// partition are serialized to preserve offset bookkeeping.
func (s *Store) WriteWindows(windows []window.Window) error {
	if len(windows) == 0 {
		return nil
	}
	partition := windows[0].Partition
	for i := range windows {
		if windows[i].Partition != partition {
			return fmt.Errorf("mixed partitions in one write: %s and %s", partition, windows[i].Partition)
		}
	}

	lock, err := s.partitionLock(partition)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "windows")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i := range windows {
		w := &windows[i]
		var phases []byte
		if w.Phases != nil {
			phases = encodeFloat3s(w.Phases)
		}
		if err := appender.AppendRow(
			string(w.Partition), w.SeqID, w.Species, int64(w.SeqLength),
			int64(w.Offset), int8(w.Strand), int32(w.PoolSize), int32(w.ChunkSize),
			int32(w.PaddedBases), w.HasError(), w.FullyIntergenic(),
			encodeFloat4s(w.Nucleotides), encodeClasses(w.Labels),
			encodeFloats(w.Weights), encodeBools(w.Valid), phases,
		); err != nil {
			return fmt.Errorf("append window %s@%d: %w", w.SeqID, w.Offset, err)
		}
	}
	return appender.Flush()
}

// FinalizePartition marks a partition read-only. Further writes fail;
// concurrent reads are safe from here on.
func (s *Store) FinalizePartition(p window.Partition) {
	s.mu.Lock()
	s.finalized[p] = true
	s.mu.Unlock()
}

// ScanWindows streams a partition's windows ordered by sequence and offset.
func (s *Store) ScanWindows(p window.Partition, fn func(*window.Window) error) error {
	rows, err := s.db.Query(`SELECT
		seq_id, species, seq_length, base_offset, strand, pool_size, chunk_size,
		padded_bases, nucleotides, labels, weights, valid, phases
		FROM windows WHERE partition = ?
		ORDER BY seq_id, base_offset`, string(p))
	if err != nil {
		return fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			w                         window.Window
			seqLength, offset         int64
			strand                    int8
			poolSize, chunkSize, pad  int32
			nucs, labels, weights, vb []byte
			phases                    []byte
		)
		if err := rows.Scan(&w.SeqID, &w.Species, &seqLength, &offset, &strand,
			&poolSize, &chunkSize, &pad, &nucs, &labels, &weights, &vb, &phases); err != nil {
			return fmt.Errorf("scan window: %w", err)
		}
		w.Partition = p
		w.SeqLength = int(seqLength)
		w.Offset = int(offset)
		w.Strand = gene.Strand(strand)
		w.PoolSize = int(poolSize)
		w.ChunkSize = int(chunkSize)
		w.PaddedBases = int(pad)
		w.Nucleotides = decodeFloat4s(nucs)
		w.Labels = decodeClasses(labels)
		w.Weights = decodeFloats(weights)
		w.Valid = decodeBools(vb)
		if len(phases) > 0 {
			w.Phases = decodeFloat3s(phases)
		}
		if err := fn(&w); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate windows: %w", err)
	}
	return nil
}

// CountWindows returns the number of stored windows in a partition.
func (s *Store) CountWindows(p window.Partition) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM windows WHERE partition = ?`, string(p)).Scan(&n)
	return n, err
}

// SetAttribute records one export run attribute, overwriting any prior value.
func (s *Store) SetAttribute(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO run_attrs (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Attribute returns a run attribute, or "" when unset.
func (s *Store) Attribute(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM run_attrs WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
