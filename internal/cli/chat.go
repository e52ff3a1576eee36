package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/embedding"
	"docchat/internal/pipeline"
	"docchat/internal/tui"
	"docchat/internal/vectorstore"
)

var (
	chatForce bool
	chatYes   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents in the terminal",
	Long: `Brings the index up to date, then starts an interactive chat. Type a
question and get an answer grounded in your documents; type "exit" to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatForce, "force", false, "reprocess every document before chatting")
	chatCmd.Flags().BoolVarP(&chatYes, "yes", "y", false, "skip the reprocess prompt")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	force := chatForce
	if !force && !chatYes {
		force = confirm(cmd, "Reprocess all documents from scratch? (y/N): ")
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
	ctx := cmd.Context()
	if err := p.Run(ctx, force); err != nil {
		if errors.Is(err, vectorstore.ErrNoRecords) {
			return fmt.Errorf("nothing to index, put documents into %s first", cfg.Paths.DocumentsDir)
		}
		return err
	}
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("loading vector store: %w", err)
	}

	svc, llm := buildRAG(cfg, store, embedder)
	if err := llm.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("model", llm.ModelName()).
			Msg("Ollama is not reachable, start it with 'ollama serve'")
	}

	if _, err := tea.NewProgram(tui.New(svc)).Run(); err != nil {
		return fmt.Errorf("chat ui: %w", err)
	}
	fmt.Println("See you!")
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Print(prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
