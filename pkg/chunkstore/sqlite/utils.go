package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/recallhq/recall-go/pkg/memory"
)

// rowScanner abstracts *sql.Row and *sql.Rows for scanChunk.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// encodeChunkFields serializes the embedding and metadata as JSON strings.
func encodeChunkFields(chunk *memory.Chunk) (string, string, error) {
	embeddingJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return "", "", err
	}

	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return "", "", err
	}

	return string(embeddingJSON), string(metadataJSON), nil
}

// scanChunk reads one chunk row.
func scanChunk(row rowScanner) (*memory.Chunk, error) {
	var (
		chunk         memory.Chunk
		kind          string
		embeddingJSON string
		metadataJSON  sql.NullString
		createdAt     time.Time
	)

	if err := row.Scan(&chunk.ID, &kind, &chunk.Content, &embeddingJSON, &metadataJSON, &createdAt); err != nil {
		return nil, err
	}

	chunk.Kind = memory.Kind(kind)
	chunk.Timestamp = createdAt

	if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
		return nil, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, err
		}
	}

	return &chunk, nil
}
