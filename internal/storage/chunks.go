package storage

import (
	"context"
	"fmt"
)

// SaveIndexChunk persists one serialised index chunk. Store implements
// index.ChunkStore.
func (s *Store) SaveIndexChunk(ctx context.Context, seq int, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_chunks (seq, chunk) VALUES (?, ?)
		 ON CONFLICT (seq) DO UPDATE SET chunk = excluded.chunk`, seq, blob)
	if err != nil {
		return fmt.Errorf("saving index chunk %d: %w", seq, err)
	}
	return nil
}

// LoadIndexChunks returns all persisted chunks in sequence order.
func (s *Store) LoadIndexChunks(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk FROM index_chunks ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("querying index chunks: %w", err)
	}
	defer rows.Close()

	var chunks [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning index chunk: %w", err)
		}
		chunks = append(chunks, blob)
	}
	return chunks, rows.Err()
}

// ClearIndexChunks removes all persisted chunks.
func (s *Store) ClearIndexChunks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM index_chunks"); err != nil {
		return fmt.Errorf("clearing index chunks: %w", err)
	}
	return nil
}
