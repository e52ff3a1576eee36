package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/llmservice"
	"docchat/internal/rag"
	"docchat/internal/vectorstore"
	"docchat/internal/vectorstore/chromemdb"
	"docchat/internal/vectorstore/flat"
	"docchat/internal/vectorstore/pgvector"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Index local documents and chat with them",
	Long: `docchat turns a folder of documents into a searchable vector store and
answers questions about them with a local language model, grounded in the
text it retrieves.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./configs/config.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	return cfg, nil
}

// buildStore selects the vector store backend.
func buildStore(cfg *config.Config) (vectorstore.Store, error) {
	dim := cfg.Embedding.Dimension
	switch cfg.Store.Backend {
	case "flat":
		return flat.New(cfg.Paths.StoreDir(), dim), nil
	case "chromem":
		return chromemdb.New(cfg.Paths.StoreDir(), cfg.Store.Chromem.Collection, dim)
	case "pgvector":
		return pgvector.NewFromConfig(&cfg.Store.Database, dim)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

// buildRAG assembles the retrieval and answer path used by query and chat.
// The language model client is returned as well so callers can probe it.
func buildRAG(cfg *config.Config, store vectorstore.Store, embedder embedding.Embedder) (*rag.RAG, *llmservice.OllamaClient) {
	retriever := rag.NewRetriever(store, embedder, cfg.Retrieval.TopK)
	llm := llmservice.NewOllamaClient(&cfg.LLM)
	return rag.NewRAG(retriever, llm), llm
}
