package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spark-health/sparkai/db"
	"github.com/spark-health/sparkai/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending knowledge database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		newLogger(cfg)

		return db.Migrate(cfg.KnowledgeURL())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
