package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/embedding"
	"docchat/internal/helper"
	"docchat/internal/vectorstore"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Ask a single question against the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := store.Load(ctx); err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			return errors.New(`no index found, run "docchat index" first`)
		}
		return fmt.Errorf("loading vector store: %w", err)
	}

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}
	svc, _ := buildRAG(cfg, store, embedder)

	response, err := svc.Query(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if queryJSON {
		helper.PrettyPrint(response)
		return nil
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)

	return nil
}
