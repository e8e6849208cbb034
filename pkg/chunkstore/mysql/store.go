// Package mysql provides a MySQL implementation of chunk pool storage.
//
// Embeddings are stored as JSON columns; similarity is computed in the
// retrieval pipeline, not in SQL.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/go-sql-driver/mysql"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Store implements chunkstore.Store using MySQL as the backend.
type Store struct {
	db        *sql.DB
	tableName string
	node      *snowflake.Node
}

// Config contains configuration for creating a MySQL chunk store.
type Config struct {
	// Host is the database host. Default: "127.0.0.1".
	Host string

	// Port is the database port. Default: 3306.
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// TableName is the name of the table to use. Default: "chunks".
	TableName string
}

// New creates a new MySQL chunk store.
//
// Parameters:
//   - cfg: Connection and table configuration
//
// Returns:
//   - *Store: The MySQL store instance
//   - error: Error if the connection or table creation fails
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql store: config is required")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "chunks"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, host, port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql store: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql store: %w", err)
	}

	store := &Store{db: db, tableName: tableName, node: node}
	if err := store.initTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			content TEXT NOT NULL,
			embedding JSON NOT NULL,
			metadata JSON,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_kind (kind)
		)
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mysql store: initTables: %w", err)
	}
	return nil
}

// Insert stores a chunk, generating an ID and timestamp when missing.
func (s *Store) Insert(ctx context.Context, chunk *memory.Chunk) (*memory.Chunk, error) {
	if chunk == nil {
		return nil, fmt.Errorf("mysql store: nil chunk")
	}
	if chunk.ID == "" {
		chunk.ID = s.node.Generate().String()
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}

	embeddingJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return nil, fmt.Errorf("mysql store: Insert: %w", err)
	}
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return nil, fmt.Errorf("mysql store: Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		chunk.ID, string(chunk.Kind), chunk.Content,
		string(embeddingJSON), string(metadataJSON), chunk.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("mysql store: Insert: %w", err)
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
		return nil, fmt.Errorf("mysql store: GetAllChunks: %w", err)
	}
	defer rows.Close()

	var chunks []*memory.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("mysql store: GetAllChunks: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql store: GetAllChunks: %w", err)
	}

	return chunks, nil
}

// Get retrieves a chunk by ID.
func (s *Store) Get(ctx context.Context, id string) (*memory.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, content, embedding, metadata, created_at
		FROM %s WHERE id = ?
	`, s.tableName)

	chunk, err := scanChunk(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("mysql store: chunk %s not found", id)
		}
		return nil, fmt.Errorf("mysql store: Get: %w", err)
	}
	return chunk, nil
}

// Delete removes a chunk by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mysql store: Delete: %w", err)
	}
	return nil
}

// Count returns the number of chunks of the given kind.
func (s *Store) Count(ctx context.Context, kind memory.Kind) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE kind = ?`, s.tableName)

	var count int
	if err := s.db.QueryRowContext(ctx, query, string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("mysql store: Count: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*memory.Chunk, error) {
	var (
		chunk         memory.Chunk
		kind          string
		embeddingJSON []byte
		metadataJSON  []byte
		createdAt     time.Time
	)

	if err := row.Scan(&chunk.ID, &kind, &chunk.Content, &embeddingJSON, &metadataJSON, &createdAt); err != nil {
		return nil, err
	}

	chunk.Kind = memory.Kind(kind)
	chunk.Timestamp = createdAt

	if err := json.Unmarshal(embeddingJSON, &chunk.Embedding); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			return nil, err
		}
	}

	return &chunk, nil
}
