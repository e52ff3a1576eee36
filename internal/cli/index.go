package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/embedding"
	"docchat/internal/pipeline"
	"docchat/internal/vectorstore"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run the document indexing pipeline",
	Long: `Extracts text from every document in the configured folder, cleans and
chunks it, embeds the chunks and builds the vector store. Stages whose
outputs are already complete are skipped; --force redoes everything.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "rerun every stage even if complete")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	p, err := pipeline.New(cfg, pipeline.Dependencies{Embedder: embedder, Store: store})
	if err != nil {
		return err
	}
	if err := p.Run(cmd.Context(), indexForce); err != nil {
		if errors.Is(err, vectorstore.ErrNoRecords) {
			return fmt.Errorf("nothing to index, put documents into %s first", cfg.Paths.DocumentsDir)
		}
		return err
	}

	log.Info().Msg("Index is ready")
	return nil
}
