package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/llmservice"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = f.vec
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }

type fakeStore struct {
	hits   []vectorstore.Hit
	chunks []string
	err    error

	gotQuery []float32
	gotK     int
}

func (f *fakeStore) Build(context.Context, []models.EmbeddingRecord) error { return nil }
func (f *fakeStore) Persist(context.Context) error                        { return nil }
func (f *fakeStore) Load(context.Context) error                           { return nil }

func (f *fakeStore) Search(_ context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	f.gotQuery = query
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeStore) Chunks() []string { return f.chunks }
func (f *fakeStore) Len() int         { return len(f.chunks) }

type fakeAnswerer struct {
	answer string
	err    error

	called    bool
	gotPrompt string
}

func (f *fakeAnswerer) Complete(_ context.Context, prompt string) (string, error) {
	f.called = true
	f.gotPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestQueryAnswersFromRetrievedContext(t *testing.T) {
	store := &fakeStore{
		hits: []vectorstore.Hit{
			{Position: 2, Distance: 0.1},
			{Position: 0, Distance: 0.4},
		},
		chunks: []string{"alpha fact", "beta fact", "gamma fact"},
	}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	llm := &fakeAnswerer{answer: "The answer."}

	svc := NewRAG(NewRetriever(store, embedder, 2), llm)

	resp, err := svc.Query(context.Background(), "what is gamma?")
	require.NoError(t, err)

	assert.Equal(t, "what is gamma?", resp.Query)
	assert.Equal(t, "The answer.", resp.Content)
	assert.Equal(t, "gamma fact"+models.ContextSeparator+"alpha fact", resp.Source)

	assert.Equal(t, []float32{1, 0}, store.gotQuery)
	assert.Equal(t, 2, store.gotK)

	require.True(t, llm.called)
	assert.Contains(t, llm.gotPrompt, "gamma fact")
	assert.Contains(t, llm.gotPrompt, "alpha fact")
	assert.Contains(t, llm.gotPrompt, "what is gamma?")
}

func TestQueryWithoutHitsSkipsModel(t *testing.T) {
	store := &fakeStore{chunks: []string{"alpha fact"}}
	llm := &fakeAnswerer{answer: "should not be used"}

	svc := NewRAG(NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 3), llm)

	resp, err := svc.Query(context.Background(), "unrelated question")
	require.NoError(t, err)

	assert.Equal(t, models.NoContextAnswer, resp.Content)
	assert.Empty(t, resp.Source)
	assert.False(t, llm.called)
}

func TestRetrieveDropsPositionsWithoutChunks(t *testing.T) {
	store := &fakeStore{
		hits: []vectorstore.Hit{
			{Position: 0, Distance: 0.1},
			{Position: 99, Distance: 0.2},
			{Position: 1, Distance: 0.3},
		},
		chunks: []string{"alpha fact", "beta fact"},
	}

	retriever := NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 3)

	retrieved, err := retriever.Retrieve(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, retrieved, 2)
	assert.Equal(t, "alpha fact", retrieved[0].Text)
	assert.Equal(t, "beta fact", retrieved[1].Text)
}

func TestRetrievePreservesHitOrder(t *testing.T) {
	store := &fakeStore{
		hits: []vectorstore.Hit{
			{Position: 1, Distance: 0.05},
			{Position: 0, Distance: 0.9},
		},
		chunks: []string{"far chunk", "near chunk"},
	}

	retriever := NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 2)

	retrieved, err := retriever.Retrieve(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, retrieved, 2)
	assert.Equal(t, "near chunk", retrieved[0].Text)
	assert.Equal(t, 0.05, retrieved[0].Distance)
	assert.Equal(t, "far chunk", retrieved[1].Text)
}

func TestRetrieveRejectsBlankQuery(t *testing.T) {
	store := &fakeStore{chunks: []string{"alpha"}}
	retriever := NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 1)

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := retriever.Retrieve(context.Background(), query)
		assert.Error(t, err)
	}
	assert.Nil(t, store.gotQuery)
}

func TestQueryEmbedderFailure(t *testing.T) {
	store := &fakeStore{chunks: []string{"alpha"}}
	embedder := &fakeEmbedder{err: errors.New("embedding backend down")}
	llm := &fakeAnswerer{}

	svc := NewRAG(NewRetriever(store, embedder, 1), llm)

	_, err := svc.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding query")
	assert.False(t, llm.called)
}

func TestQuerySearchFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("index corrupted")}

	svc := NewRAG(NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 1), &fakeAnswerer{})

	_, err := svc.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "searching vector store")
}

func TestQueryModelFailureKeepsSentinel(t *testing.T) {
	store := &fakeStore{
		hits:   []vectorstore.Hit{{Position: 0, Distance: 0.1}},
		chunks: []string{"alpha fact"},
	}
	llm := &fakeAnswerer{err: fmt.Errorf("%w: connection refused", llmservice.ErrUnavailable)}

	svc := NewRAG(NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 1), llm)

	_, err := svc.Query(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, llmservice.ErrUnavailable)
}

func TestQueryPromptLayout(t *testing.T) {
	store := &fakeStore{
		hits:   []vectorstore.Hit{{Position: 0, Distance: 0}},
		chunks: []string{"the sky is blue"},
	}
	llm := &fakeAnswerer{answer: "Blue."}

	svc := NewRAG(NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, 1), llm)

	_, err := svc.Query(context.Background(), "what colour is the sky?")
	require.NoError(t, err)

	// Context must come before the question, as the template lays them out.
	ctxAt := strings.Index(llm.gotPrompt, "the sky is blue")
	queryAt := strings.Index(llm.gotPrompt, "what colour is the sky?")
	require.NotEqual(t, -1, ctxAt)
	require.NotEqual(t, -1, queryAt)
	assert.Less(t, ctxAt, queryAt)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(llm.gotPrompt), "Answer:"))
}
