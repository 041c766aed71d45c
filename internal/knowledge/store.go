// Package knowledge persists medical-knowledge chunks with their embedding
// vectors and serves nearest-neighbor retrieval over them.
//
// The schema is versioned by embedding family: every row records the model
// name and vector dimension it was embedded with, and every similarity
// search filters on both, so vectors from incompatible embedding models are
// never compared.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/spark-health/sparkai/internal/database"
	"github.com/spark-health/sparkai/internal/log"
)

var (
	// ErrEmptyVector indicates an insert or search with a zero-length
	// embedding.
	ErrEmptyVector = errors.New("empty embedding vector")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = errors.New("result limit must be positive")
)

// Tx is a transactional unit of ingestion work. Either every insert in
// the unit is committed or none is; Rollback discards all of them and
// leaves no dangling transaction.
type Tx interface {
	Insert(ctx context.Context, content string, vec []float32, model string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the vector store gateway over PostgreSQL + pgvector.
//
// The connection pool sits behind an atomic pointer so an administrative
// database-configuration change can swap it; in-flight requests keep the
// pool they started with, subsequent requests get the new one.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   atomic.Pointer[pgxpool.Pool]
	logger log.Logger
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) *Store {
	s := &Store{logger: logger}
	s.pool.Store(pool)
	return s
}

// Ping verifies connectivity to the knowledge database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Load().Ping(ctx)
}

// Reconnect swaps the underlying pool for one connected with the given
// DSN. The old pool is closed after the swap; requests that already hold
// it finish on its remaining connections.
func (s *Store) Reconnect(ctx context.Context, dsn string) error {
	pool, err := database.NewPool(ctx, dsn, true)
	if err != nil {
		return fmt.Errorf("reconnecting knowledge store: %w", err)
	}

	old := s.pool.Swap(pool)
	if old != nil {
		old.Close()
	}
	s.logger.Info("knowledge store reconnected")
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if p := s.pool.Load(); p != nil {
		p.Close()
	}
}

// Insert persists one (content, vector) pair under the given embedding
// model. The write is atomic: it either lands completely or not at all.
func (s *Store) Insert(ctx context.Context, content string, vec []float32, model string) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}

	_, err := s.pool.Load().Exec(ctx,
		`INSERT INTO knowledge_chunks (content, embedding, model_name, dimension)
		 VALUES ($1, $2, $3, $4)`,
		content, pgvector.NewVector(vec), model, len(vec))
	if err != nil {
		return fmt.Errorf("inserting knowledge chunk: %w", err)
	}

	s.logger.Debug("inserted knowledge chunk", "model", model, "dimension", len(vec), "content_length", len(content))
	return nil
}

// NearestK returns the content of the k chunks nearest to vec under the
// store's distance metric, nearest first. Only chunks embedded with the
// same model and dimension are considered. An empty result is not an
// error: it means no relevant context exists.
func (s *Store) NearestK(ctx context.Context, vec []float32, model string, k int) ([]string, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, k)
	}

	rows, err := s.pool.Load().Query(ctx,
		`SELECT content FROM knowledge_chunks
		 WHERE model_name = $2 AND dimension = $3
		 ORDER BY embedding <-> $1
		 LIMIT $4`,
		pgvector.NewVector(vec), model, len(vec), k)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge chunks: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning knowledge chunk: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading knowledge chunks: %w", err)
	}

	s.logger.Debug("nearest-neighbor search", "model", model, "k", k, "results", len(contents))
	return contents, nil
}

// ListContentByModel returns chunk text stored under the given embedding
// model, in insertion order. Used by the re-embedding migration.
func (s *Store) ListContentByModel(ctx context.Context, model string, limit int32) ([]string, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.pool.Load().Query(ctx,
		`SELECT content FROM knowledge_chunks
		 WHERE model_name = $1
		 ORDER BY id
		 LIMIT $2`,
		model, limit)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge chunks: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning knowledge chunk: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading knowledge chunks: %w", err)
	}
	return contents, nil
}

// Begin opens a transactional batch for ingestion.
func (s *Store) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Load().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning ingest transaction: %w", err)
	}
	return &batch{tx: tx, logger: s.logger}, nil
}

// batch implements Tx over a pgx transaction.
type batch struct {
	tx     pgx.Tx
	logger log.Logger
	count  int
}

func (b *batch) Insert(ctx context.Context, content string, vec []float32, model string) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}

	_, err := b.tx.Exec(ctx,
		`INSERT INTO knowledge_chunks (content, embedding, model_name, dimension)
		 VALUES ($1, $2, $3, $4)`,
		content, pgvector.NewVector(vec), model, len(vec))
	if err != nil {
		return fmt.Errorf("inserting knowledge chunk: %w", err)
	}
	b.count++
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ingest transaction: %w", err)
	}
	b.logger.Debug("ingest batch committed", "chunks", b.count)
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	if err := b.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back ingest transaction: %w", err)
	}
	return nil
}
