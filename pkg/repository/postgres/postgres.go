package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq" // postgres driver
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = goerr.New("not found")

// Postgres stores records and chunks in PostgreSQL with the pgvector extension
type Postgres struct {
	db     *sql.DB
	chunk  *chunkRepository
	record *recordRepository
}

var _ interfaces.Repository = &Postgres{}

// New opens a connection pool for dsn and verifies it is reachable
func New(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres connection")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool
func NewWithDB(db *sql.DB) *Postgres {
	return &Postgres{
		db:     db,
		chunk:  &chunkRepository{db: db},
		record: &recordRepository{db: db},
	}
}

func (p *Postgres) Chunk() interfaces.ChunkRepository {
	return p.chunk
}

func (p *Postgres) Record() interfaces.RecordRepository {
	return p.record
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Schema returns the DDL creating tables and indexes for the given embedding dimension
func Schema(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS requests (
  id TEXT PRIMARY KEY,
  fields JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS request_chunks (
  record_id TEXT NOT NULL,
  chunk_index INTEGER NOT NULL,
  chunk_text TEXT NOT NULL,
  start_offset INTEGER NOT NULL,
  end_offset INTEGER NOT NULL,
  embedding vector(%d) NOT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  PRIMARY KEY (record_id, chunk_index)
)`, dimension),
		`CREATE INDEX IF NOT EXISTS request_chunks_embedding_idx ON request_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS request_chunks_metadata_idx ON request_chunks USING gin (metadata)`,
	}
}

// Migrate applies Schema in a single transaction
func (p *Postgres) Migrate(ctx context.Context, dimension int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin migration")
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range Schema(dimension) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to apply schema statement", goerr.V("statement", stmt))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit migration")
	}
	return nil
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", goerr.New("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
