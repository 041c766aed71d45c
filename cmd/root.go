// Package cmd contains the sparkai command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sparkai",
	Short: "Spark AI - retrieval-augmented medical assistant backend",
	Long: `Spark AI is the backend service for a medical-advice chatbot.

It answers health questions by combining a per-user profile, vector
similarity search over an ingested medical knowledge base, and a local
Ollama language model. Run "sparkai serve" to start the HTTP API.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
