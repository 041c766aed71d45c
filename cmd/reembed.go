package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-health/sparkai/internal/chunker"
	"github.com/spark-health/sparkai/internal/config"
	"github.com/spark-health/sparkai/internal/database"
	"github.com/spark-health/sparkai/internal/knowledge"
	"github.com/spark-health/sparkai/internal/ollama"
	"github.com/spark-health/sparkai/internal/profile"
	"github.com/spark-health/sparkai/internal/rag"
)

var reembedFrom string

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Re-embed stored knowledge chunks with the current embedding model",
	Long: `Re-embed reads the chunks stored under a previous embedding model,
embeds their text with the currently configured model, and inserts the
results as new rows in one transaction. The source rows are left in
place so the migration can be verified before they are dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReembed(reembedFrom)
	},
}

func init() {
	reembedCmd.Flags().StringVar(&reembedFrom, "from", "", "embedding model whose chunks to migrate (required)")
	_ = reembedCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(reembedCmd)
}

func runReembed(fromModel string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.KnowledgeDSN(), true)
	if err != nil {
		return fmt.Errorf("connecting knowledge database: %w", err)
	}
	store := knowledge.New(pool, logger)
	defer store.Close()

	client := ollama.NewClient(nil, logger)
	svc := rag.New(rag.Params{
		Runtime:  config.NewRuntime(cfg.Settings()),
		Embedder: client,
		Gen:      client,
		Store:    store,
		Profiles: profile.New(nil, logger),
		Splitter: chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		TopK:     cfg.RetrievalTopK,
		Logger:   logger,
	})

	n, err := svc.Reembed(ctx, fromModel)
	if err != nil {
		return fmt.Errorf("re-embedding from %q: %w", fromModel, err)
	}

	fmt.Printf("Re-embedded %d chunks from %s to %s\n", n, fromModel, cfg.EmbeddingModel)
	return nil
}
