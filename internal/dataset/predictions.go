package dataset

import (
	"database/sql"
	"fmt"
)

// WritePrediction persists one reassembled per-base probability track as a
// genome-wide prediction artifact, replacing any earlier prediction for the
// same sequence.
func (s *Store) WritePrediction(seqID, species string, probs [][4]float32) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO predictions
		(seq_id, species, seq_length, probs) VALUES (?, ?, ?, ?)`,
		seqID, species, int64(len(probs)), encodeFloat4s(probs))
	if err != nil {
		return fmt.Errorf("write prediction %s: %w", seqID, err)
	}
	return nil
}

// ReadPrediction loads a stored prediction track, or nil when absent.
func (s *Store) ReadPrediction(seqID string) ([][4]float32, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT probs FROM predictions WHERE seq_id = ?`, seqID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prediction %s: %w", seqID, err)
	}
	return decodeFloat4s(blob), nil
}
