// Package main provides the build-index CLI for the Expo documentation index.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/config"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/logging"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/service"
)

var (
	configPath string
	maxResults int
)

var rootCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Expo documentation indexing tool",
	Long:  "CLI tool for building and querying the Expo documentation vector index",
	// Running without a subcommand builds
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the vector index from the documentation corpus",
	Long: `Replaces the saved index with a fresh build.

This command:
1. Lists documentation files (.md .mdx .ts .tsx .js .jsx) in the corpus
2. Segments them into documents (Markdown pages, doc comments, code summaries)
3. Splits documents into overlapping chunks
4. Embeds the chunks in batches and builds the vector index
5. Saves the index to the configured backend

Environment variables:
  OPENAI_API_KEY      OpenAI API key for embeddings (required for the openai provider)
  EMBEDDING_PROVIDER  openai or hash (default: openai)
  DOCS_SOURCE_PATH    Local corpus root (default: ./docs-source)
  CORPUS_SOURCE       local or github (default: local)
  INDEX_BACKEND       file, sqlite or qdrant (default: file)
  VECTOR_STORE_PATH   Index location for file and sqlite (default: ./data/vector_store)`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Query the saved index and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	queryCmd.Flags().IntVarP(&maxResults, "max-results", "n", 5, "maximum number of results")
	rootCmd.AddCommand(buildCmd, queryCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, installs the logger and wires the service.
func setup(ctx context.Context) (*config.Config, *service.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	svc, err := service.FromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()

	cfg, svc, err := setup(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Println("Starting index build...")
	fmt.Printf("  Backend: %s\n", cfg.Index.Backend)
	fmt.Printf("  Location: %s\n", cfg.IndexLocation())
	fmt.Printf("  Provider: %s\n", cfg.Embedding.Provider)
	fmt.Println()

	result, err := svc.Build(ctx)
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Index build complete!")
	fmt.Printf("  Files: %d\n", result.Files)
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedFiles) > 0 {
		fmt.Println()
		fmt.Println("Skipped files:")
		for _, failed := range result.FailedFiles {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	_, svc, err := setup(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.ProcessQuery(ctx, args[0], maxResults)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
