package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/spark-health/sparkai/api"
	"github.com/spark-health/sparkai/db"
	"github.com/spark-health/sparkai/internal/chunker"
	"github.com/spark-health/sparkai/internal/config"
	"github.com/spark-health/sparkai/internal/database"
	"github.com/spark-health/sparkai/internal/knowledge"
	"github.com/spark-health/sparkai/internal/log"
	"github.com/spark-health/sparkai/internal/ollama"
	"github.com/spark-health/sparkai/internal/profile"
	"github.com/spark-health/sparkai/internal/rag"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the process logger from configuration and installs it
// as the slog default so package-level logging (migrations) uses it too.
func newLogger(cfg *config.Config) log.Logger {
	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runServe wires the full service and blocks until shutdown.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("starting sparkai", "version", AppVersion)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.KnowledgeURL()); err != nil {
		return fmt.Errorf("migrating knowledge database: %w", err)
	}

	knowledgePool, err := database.NewPool(ctx, cfg.KnowledgeDSN(), true)
	if err != nil {
		return fmt.Errorf("connecting knowledge database: %w", err)
	}
	store := knowledge.New(knowledgePool, logger)
	defer store.Close()

	// The profile database is best-effort: when it is absent or
	// unreachable the service runs without personalization.
	var profilePool *pgxpool.Pool
	if cfg.ProfileDatabaseURL == "" {
		logger.Info("profile database not configured, personalization disabled")
	} else if profilePool, err = database.NewPool(ctx, cfg.ProfileDatabaseURL, false); err != nil {
		logger.Warn("profile database unreachable, personalization disabled", "error", err)
		profilePool = nil
	}
	profiles := profile.New(profilePool, logger)
	defer profiles.Close()

	runtime := config.NewRuntime(cfg.Settings())
	client := ollama.NewClient(nil, logger)

	svc := rag.New(rag.Params{
		Runtime:  runtime,
		Embedder: client,
		Gen:      client,
		Store:    store,
		Profiles: profiles,
		Splitter: chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		Sampling: ollama.Options{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
			NumPredict:  cfg.MaxOutputTokens,
		},
		TopK:   cfg.RetrievalTopK,
		Logger: logger,
	})

	server := api.NewServer(api.ServerConfig{
		Service:   svc,
		Runtime:   runtime,
		Pinger:    store,
		Reconnect: store.Reconnect,
		Logger:    logger,
	})

	return server.Run(ctx, cfg.ListenAddr)
}
