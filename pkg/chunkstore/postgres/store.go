// Package postgres provides a PostgreSQL implementation of chunk pool
// storage.
//
// Embeddings are stored as JSONB; similarity is computed in the retrieval
// pipeline, not in SQL, so no vector extension is required.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/lib/pq"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Store implements chunkstore.Store using PostgreSQL as the backend.
type Store struct {
	db        *sql.DB
	tableName string
	node      *snowflake.Node
}

// Config contains configuration for creating a PostgreSQL chunk store.
type Config struct {
	// Host is the database host. Default: "localhost".
	Host string

	// Port is the database port. Default: 5432.
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// TableName is the name of the table to use. Default: "chunks".
	TableName string

	// SSLMode is the libpq sslmode setting. Default: "disable".
	SSLMode string
}

// New creates a new PostgreSQL chunk store.
//
// Parameters:
//   - cfg: Connection and table configuration
//
// Returns:
//   - *Store: The PostgreSQL store instance
//   - error: Error if the connection or table creation fails
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres store: config is required")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "chunks"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
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
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding JSONB NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres store: initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_kind ON %s(kind)
	`, s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("postgres store: initTables: %w", err)
	}

	return nil
}

// Insert stores a chunk, generating an ID and timestamp when missing.
func (s *Store) Insert(ctx context.Context, chunk *memory.Chunk) (*memory.Chunk, error) {
	if chunk == nil {
		return nil, fmt.Errorf("postgres store: nil chunk")
	}
	if chunk.ID == "" {
		chunk.ID = s.node.Generate().String()
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}

	embeddingJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return nil, fmt.Errorf("postgres store: Insert: %w", err)
	}
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres store: Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		chunk.ID, string(chunk.Kind), chunk.Content,
		string(embeddingJSON), string(metadataJSON), chunk.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("postgres store: Insert: %w", err)
	}

	return chunk, nil
}

// GetAllChunks returns every chunk of the given kind, oldest first.
func (s *Store) GetAllChunks(ctx context.Context, kind memory.Kind) ([]*memory.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, content, embedding, metadata, created_at
		FROM %s WHERE kind = $1 ORDER BY created_at, id
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("postgres store: GetAllChunks: %w", err)
	}
	defer rows.Close()

	var chunks []*memory.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: GetAllChunks: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: GetAllChunks: %w", err)
	}

	return chunks, nil
}

// Get retrieves a chunk by ID.
func (s *Store) Get(ctx context.Context, id string) (*memory.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, content, embedding, metadata, created_at
		FROM %s WHERE id = $1
	`, s.tableName)

	chunk, err := scanChunk(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("postgres store: chunk %s not found", id)
		}
		return nil, fmt.Errorf("postgres store: Get: %w", err)
	}
	return chunk, nil
}

// Delete removes a chunk by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("postgres store: Delete: %w", err)
	}
	return nil
}

// Count returns the number of chunks of the given kind.
func (s *Store) Count(ctx context.Context, kind memory.Kind) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE kind = $1`, s.tableName)

	var count int
	if err := s.db.QueryRowContext(ctx, query, string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres store: Count: %w", err)
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
