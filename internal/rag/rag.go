package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docchat/internal/embedding"
	"docchat/internal/llmservice"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

// Retriever embeds a query and maps the nearest vector positions back to
// chunk texts.
type Retriever struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	topK     int
}

func NewRetriever(store vectorstore.Store, embedder embedding.Embedder, topK int) *Retriever {
	return &Retriever{store: store, embedder: embedder, topK: topK}
}

// Retrieve returns the chunks most similar to query, best first. Hits whose
// position has no matching chunk text are dropped with a warning.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}

	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors for one text", len(vecs))
	}

	hits, err := r.store.Search(ctx, vecs[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching vector store: %w", err)
	}

	chunks := r.store.Chunks()
	retrieved := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(chunks) {
			log.Warn().
				Int("position", hit.Position).
				Int("chunks", len(chunks)).
				Msg("Dropping hit with no matching chunk text")
			continue
		}
		retrieved = append(retrieved, models.RetrievedChunk{
			Position: hit.Position,
			Distance: hit.Distance,
			Text:     chunks[hit.Position],
		})
	}
	return retrieved, nil
}

// RAG answers queries from retrieved context only.
type RAG struct {
	retriever *Retriever
	llm       llmservice.Answerer
}

func NewRAG(retriever *Retriever, llm llmservice.Answerer) *RAG {
	return &RAG{retriever: retriever, llm: llm}
}

// Query retrieves grounding chunks and asks the language model. When nothing
// relevant is found, the canned no-context answer is returned without calling
// the model.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	retrieved, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(retrieved) == 0 {
		log.Info().Str("query", query).Msg("No relevant chunks found")
		return &models.PromptResponse{
			Query:   query,
			Content: models.NoContextAnswer,
		}, nil
	}

	texts := make([]string, len(retrieved))
	for i, chunk := range retrieved {
		texts[i] = chunk.Text
	}
	contextBlock := strings.Join(texts, models.ContextSeparator)

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, contextBlock, query)
	answer, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  contextBlock,
		Content: answer,
	}, nil
}
