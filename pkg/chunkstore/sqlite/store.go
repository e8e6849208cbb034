// Package sqlite provides a SQLite implementation of chunk pool storage.
//
// SQLite is a lightweight, file-based database suitable for local
// development and single-user assistants. Embeddings are stored as JSON
// strings in TEXT fields; similarity is computed in the retrieval pipeline,
// not in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/mattn/go-sqlite3"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Store implements chunkstore.Store using SQLite as the backend.
type Store struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing chunks.
	tableName string

	// node generates IDs for chunks inserted without one.
	node *snowflake.Node
}

// Config contains configuration for creating a SQLite chunk store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use. Default: "chunks".
	TableName string
}

// New creates a new SQLite chunk store.
//
// Parameters:
//   - cfg: Configuration containing the database path and table name
//
// Returns:
//   - *Store: The SQLite store instance
//   - error: Error if database connection or table creation fails
func New(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlite store: db path is required")
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "chunks"
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite store: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: %w", err)
	}

	store := &Store{db: db, tableName: tableName, node: node}
	if err := store.initTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initTables initializes the database table structure.
func (s *Store) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite store: initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_kind ON %s(kind)
	`, s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("sqlite store: initTables: %w", err)
	}

	return nil
}

// Insert stores a chunk, generating an ID and timestamp when missing.
func (s *Store) Insert(ctx context.Context, chunk *memory.Chunk) (*memory.Chunk, error) {
	if chunk == nil {
		return nil, fmt.Errorf("sqlite store: nil chunk")
	}
	if chunk.ID == "" {
		chunk.ID = s.node.Generate().String()
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}

	embeddingJSON, metadataJSON, err := encodeChunkFields(chunk)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		chunk.ID, string(chunk.Kind), chunk.Content,
		embeddingJSON, metadataJSON, chunk.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: Insert: %w", err)
	}

	return chunk, nil
}

// GetAllChunks returns every chunk of the given kind, oldest first.
func (s *Store) GetAllChunks(ctx context.Context, kind memory.Kind) ([]*memory.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, content, embedding, metadata, created_at
		FROM %s WHERE kind = ? ORDER BY created_at, id
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("sqlite store: GetAllChunks: %w", err)
	}
	defer rows.Close()

	var chunks []*memory.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: GetAllChunks: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: GetAllChunks: %w", err)
	}

	return chunks, nil
}

// Get retrieves a chunk by ID.
func (s *Store) Get(ctx context.Context, id string) (*memory.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, content, embedding, metadata, created_at
		FROM %s WHERE id = ?
	`, s.tableName)

	row := s.db.QueryRowContext(ctx, query, id)
	chunk, err := scanChunk(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sqlite store: chunk %s not found", id)
		}
		return nil, fmt.Errorf("sqlite store: Get: %w", err)
	}
	return chunk, nil
}

// Delete removes a chunk by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("sqlite store: Delete: %w", err)
	}
	return nil
}

// Count returns the number of chunks of the given kind.
func (s *Store) Count(ctx context.Context, kind memory.Kind) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE kind = ?`, s.tableName)

	var count int
	if err := s.db.QueryRowContext(ctx, query, string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite store: Count: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
