// Package cli provides the command-line interface for recollect.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/recollect/internal/batch"
	"github.com/raphaelgruber/recollect/internal/config"
	"github.com/raphaelgruber/recollect/internal/db"
	"github.com/raphaelgruber/recollect/internal/graph"
	"github.com/raphaelgruber/recollect/internal/llm"
	"github.com/raphaelgruber/recollect/internal/metrics"
	"github.com/raphaelgruber/recollect/internal/service"
	"github.com/raphaelgruber/recollect/internal/vector"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose     bool
	workspaceID string
	userID      string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client
	closeLog func() error

	// Lazy-initialized components
	embedder    *llm.Embedder
	model       *llm.Model
	graphClient *graph.Client
	collector   = metrics.NewCollector()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recollect",
	Short: "Memory organization core",
	Long: `Recollect organizes a personal memory store: it labels ingested
episodes with an LLM plus embedding similarity, screens topic clusters
for meaningful themes, and discovers spaces that group related topics.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, closer := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		closeLog = closer

		ctx := context.Background()
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if dbClient != nil {
			if err := dbClient.Close(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if graphClient != nil {
			if err := graphClient.Close(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close neo4j: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// getModel initializes the LLM lazily; repeated calls reuse it.
func getModel(ctx context.Context) (*llm.Model, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		model.SetMetrics(collector)
	}
	return model, nil
}

// getEmbedder initializes the embedder lazily.
func getEmbedder() (*llm.Embedder, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder.SetMetrics(collector)
	}
	return embedder, nil
}

// getGraph initializes the Neo4j mirror lazily.
func getGraph(ctx context.Context) (*graph.Client, error) {
	if graphClient == nil {
		var err error
		graphClient, err = graph.NewClient(ctx, graph.Config{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("init neo4j: %w", err)
		}
	}
	return graphClient, nil
}

// newBatchStack builds the in-process batch runner and its poller.
func newBatchStack(model *llm.Model) (batch.Client, *batch.Poller) {
	client := batch.NewLocal(model, cfg.BatchConcurrency)
	poller := batch.NewPoller(client)
	poller.SetInterval(cfg.BatchPollInterval)
	poller.SetMetrics(collector)
	return client, poller
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workspaceID, "workspace", "w", "default", "workspace id")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "user id")

	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(spacesCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// newVectorStore wires the embedding index over the shared db client.
func newVectorStore() *vector.Store {
	store := vector.NewStore(dbClient)
	store.SetMetrics(collector)
	return store
}

// newExtraction builds the extraction engine and label service.
func newExtraction(ctx context.Context) (*service.ExtractionEngine, *service.LabelService, error) {
	m, err := getModel(ctx)
	if err != nil {
		return nil, nil, err
	}
	e, err := getEmbedder()
	if err != nil {
		return nil, nil, err
	}
	index := newVectorStore()
	engine := service.NewExtractionEngine(m, e, index, dbClient, cfg.SimilarityThreshold)
	labels := service.NewLabelService(dbClient, e, index)
	return engine, labels, nil
}
