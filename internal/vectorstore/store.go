package vectorstore

import (
	"context"
	"errors"

	"docchat/internal/models"
)

// Hit is one nearest-neighbour result. Position refers to build order, which
// is also the position of the chunk text in Chunks.
type Hit struct {
	Position int
	Distance float64
}

var (
	// ErrNoRecords is returned by Build when there is nothing to index.
	ErrNoRecords = errors.New("no embedding records to index")

	// ErrNotFound is returned by Load when no persisted store exists yet.
	ErrNotFound = errors.New("vector store not found")

	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension the store was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Store indexes embedding records and answers nearest-neighbour queries over
// them. Implementations keep chunk texts aligned with vector positions.
type Store interface {
	// Build replaces the store contents with the given records.
	Build(ctx context.Context, records []models.EmbeddingRecord) error

	// Persist writes the built store to its backing storage.
	Persist(ctx context.Context) error

	// Load restores a previously persisted store.
	Load(ctx context.Context) error

	// Search returns up to k hits ordered by ascending distance, ties broken
	// by the lower position.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Chunks returns the indexed chunk texts in position order.
	Chunks() []string

	// Len reports the number of indexed records.
	Len() int
}
