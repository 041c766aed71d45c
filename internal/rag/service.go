// Package rag implements the retrieval-augmented question answering and
// document ingestion pipelines.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spark-health/sparkai/internal/chunker"
	"github.com/spark-health/sparkai/internal/config"
	"github.com/spark-health/sparkai/internal/knowledge"
	"github.com/spark-health/sparkai/internal/log"
	"github.com/spark-health/sparkai/internal/ollama"
	"github.com/spark-health/sparkai/internal/profile"
	"github.com/spark-health/sparkai/internal/prompt"
)

// Pipeline-stage sentinels. The HTTP layer maps each to a distinct
// user-facing message, so a caller can always tell which stage failed.
var (
	// ErrQueryEmbedding indicates the query could not be embedded.
	ErrQueryEmbedding = errors.New("query embedding failed")

	// ErrRetrieval indicates the similarity search failed. A search that
	// finds nothing is not a retrieval failure.
	ErrRetrieval = errors.New("knowledge retrieval failed")

	// ErrGeneration indicates the language model call failed.
	ErrGeneration = errors.New("answer generation failed")
)

// EmbeddingError reports an ingestion run aborted because one chunk could
// not be embedded. Inserted counts the chunks staged before the failure;
// they were rolled back, so nothing persisted.
type EmbeddingError struct {
	Chunk    int
	Inserted int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding chunk %d failed (rolled back %d staged inserts): %v",
		e.Chunk, e.Inserted, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Embedder turns text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, baseURL, model, text string) ([]float32, error)
}

// Generator produces completions.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

// KnowledgeStore is the vector store surface the pipelines need.
type KnowledgeStore interface {
	NearestK(ctx context.Context, vec []float32, model string, k int) ([]string, error)
	Begin(ctx context.Context) (knowledge.Tx, error)
	ListContentByModel(ctx context.Context, model string, limit int32) ([]string, error)
}

// ProfileSource provides best-effort user personalization data.
type ProfileSource interface {
	Fetch(ctx context.Context, userID string) (*profile.Profile, bool)
}

// reembedBatchLimit bounds how many chunks one re-embedding run migrates.
const reembedBatchLimit = 10000

// Service wires the pipeline stages together. Each request reads one
// runtime-configuration snapshot up front and uses it throughout, so a
// concurrent model change never splits a single request across models.
type Service struct {
	runtime  *config.Runtime
	embedder Embedder
	gen      Generator
	store    KnowledgeStore
	profiles ProfileSource
	splitter chunker.Splitter
	sampling ollama.Options
	topK     int
	logger   log.Logger
}

// Params collects the Service dependencies.
type Params struct {
	Runtime  *config.Runtime
	Embedder Embedder
	Gen      Generator
	Store    KnowledgeStore
	Profiles ProfileSource
	Splitter chunker.Splitter
	Sampling ollama.Options
	TopK     int
	Logger   log.Logger
}

// New creates a Service.
func New(p Params) *Service {
	if p.TopK < 1 {
		p.TopK = config.DefaultRetrievalTopK
	}
	return &Service{
		runtime:  p.Runtime,
		embedder: p.Embedder,
		gen:      p.Gen,
		store:    p.Store,
		profiles: p.Profiles,
		splitter: p.Splitter,
		sampling: p.Sampling,
		topK:     p.TopK,
		logger:   p.Logger,
	}
}

// Answer runs the full question-answering pipeline: fetch profile,
// embed the query, retrieve nearest knowledge chunks, assemble the
// prompt, generate. The profile stage degrades to a placeholder on any
// failure; the embed, retrieve, and generate stages abort the request
// with their stage sentinel.
func (s *Service) Answer(ctx context.Context, userID, query string) (string, error) {
	requestID := uuid.New().String()
	settings := s.runtime.Snapshot()

	logger := s.logger.With("request_id", requestID, "user_id", userID)
	logger.Info("answering query", "query_length", len(query))

	profileText := prompt.NoProfilePlaceholder
	if p, ok := s.profiles.Fetch(ctx, userID); ok {
		profileText = p.String()
	}

	vec, err := s.embedder.Embed(ctx, settings.OllamaURL, settings.EmbeddingModel, query)
	if err != nil {
		logger.Error("query embedding failed", "model", settings.EmbeddingModel, "error", err)
		return "", fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}

	contents, err := s.store.NearestK(ctx, vec, settings.EmbeddingModel, s.topK)
	if err != nil {
		logger.Error("knowledge retrieval failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	contextText := prompt.NoContextPlaceholder
	if len(contents) > 0 {
		contextText = strings.Join(contents, "\n")
	}
	logger.Debug("retrieved knowledge context", "chunks", len(contents), "context_length", len(contextText))

	answer, err := s.gen.Generate(ctx, ollama.GenerateRequest{
		BaseURL: settings.OllamaURL,
		Model:   settings.OllamaModel,
		Prompt:  prompt.Assemble(contextText, profileText, query),
		Options: s.sampling,
	})
	if err != nil {
		logger.Error("answer generation failed", "model", settings.OllamaModel, "error", err)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	logger.Info("query answered", "answer_length", len(answer))
	return strings.TrimSpace(answer), nil
}

// Ingest splits document into chunks, embeds each one with the current
// embedding model, and inserts them in a single transaction. Either all
// chunks land or none do. Returns the number of chunks inserted; an
// empty or whitespace-only document inserts nothing and is not an error.
func (s *Service) Ingest(ctx context.Context, document string) (int, error) {
	chunks := s.splitter.Split(document)
	if len(chunks) == 0 {
		return 0, nil
	}

	requestID := uuid.New().String()
	settings := s.runtime.Snapshot()

	logger := s.logger.With("request_id", requestID)
	logger.Info("ingesting document", "chunks", len(chunks), "model", settings.EmbeddingModel)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting ingest: %w", err)
	}

	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, settings.OllamaURL, settings.EmbeddingModel, chunk)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Warn("rollback after embedding failure failed", "error", rbErr)
			}
			logger.Error("chunk embedding failed, ingestion aborted", "chunk", i, "error", err)
			return 0, &EmbeddingError{Chunk: i, Inserted: i, Err: err}
		}

		if err := tx.Insert(ctx, chunk, vec, settings.EmbeddingModel); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Warn("rollback after insert failure failed", "error", rbErr)
			}
			return 0, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing ingest: %w", err)
	}

	logger.Info("document ingested", "chunks", len(chunks))
	return len(chunks), nil
}

// Reembed migrates chunks stored under fromModel to the current embedding
// model: it re-embeds each chunk's text and inserts the results as new
// rows in one transaction. The original rows are left in place so the
// migration can be verified before the old rows are dropped. Returns the
// number of chunks migrated.
func (s *Service) Reembed(ctx context.Context, fromModel string) (int, error) {
	settings := s.runtime.Snapshot()
	if fromModel == settings.EmbeddingModel {
		return 0, fmt.Errorf("source model %q is already the current embedding model", fromModel)
	}

	contents, err := s.store.ListContentByModel(ctx, fromModel, reembedBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("listing chunks for model %q: %w", fromModel, err)
	}
	if len(contents) == 0 {
		s.logger.Info("no chunks to re-embed", "from_model", fromModel)
		return 0, nil
	}

	s.logger.Info("re-embedding chunks",
		"from_model", fromModel, "to_model", settings.EmbeddingModel, "chunks", len(contents))

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting re-embed: %w", err)
	}

	for i, content := range contents {
		vec, err := s.embedder.Embed(ctx, settings.OllamaURL, settings.EmbeddingModel, content)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Warn("rollback after embedding failure failed", "error", rbErr)
			}
			return 0, &EmbeddingError{Chunk: i, Inserted: i, Err: err}
		}

		if err := tx.Insert(ctx, content, vec, settings.EmbeddingModel); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Warn("rollback after insert failure failed", "error", rbErr)
			}
			return 0, fmt.Errorf("inserting re-embedded chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing re-embed: %w", err)
	}

	s.logger.Info("re-embedding completed", "chunks", len(contents))
	return len(contents), nil
}
