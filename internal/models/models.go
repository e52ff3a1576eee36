package models

// Document is one extracted source file: the filename stem plus its raw text.
type Document struct {
	Name string
	Text string
}

// EmbeddingRecord pairs a chunk with its vector, as stored in the
// per-document embedding files.
type EmbeddingRecord struct {
	ChunkText string    `json:"chunk_text"`
	Embedding []float32 `json:"embedding"`
}

// RetrievedChunk is one retrieval hit mapped back to its text.
type RetrievedChunk struct {
	Position int
	Distance float64
	Text     string
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
