package chromemdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docchat/internal/helper"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

const metadataFile = "metadata.json"

var _ vectorstore.Store = (*Store)(nil)

// Store keeps vectors in a persistent chromem-go collection. Document IDs
// encode the build position, and the chunk texts are mirrored into a JSON
// metadata file so positions always map back to text.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dir        string
	name       string
	dim        int
	chunks     []string
}

// New opens (or creates) the chromem database under dir.
func New(dir, collectionName string, dim int) (*Store, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "chromem"), false)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %v", err)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return &Store{
		db:         db,
		collection: collection,
		dir:        dir,
		name:       collectionName,
		dim:        dim,
	}, nil
}

func (s *Store) metadataPath() string { return filepath.Join(s.dir, metadataFile) }

// Build drops any existing collection and fills a fresh one. Documents are
// written to disk as they are added.
func (s *Store) Build(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return vectorstore.ErrNoRecords
	}

	docs := make([]chromem.Document, len(records))
	chunks := make([]string, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != s.dim {
			return fmt.Errorf("%w: record %d has dimension %d, want %d",
				vectorstore.ErrDimensionMismatch, i, len(rec.Embedding), s.dim)
		}
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   rec.ChunkText,
			Embedding: rec.Embedding,
		}
		chunks[i] = rec.ChunkText
	}

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	s.collection = collection

	log.Info().Int("documents", len(docs)).Msg("Adding documents to vector database")
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	s.chunks = chunks
	return nil
}

// Persist writes the chunk metadata file; the collection itself is already on
// disk.
func (s *Store) Persist(ctx context.Context) error {
	if err := helper.CreateFolder(s.dir); err != nil {
		return err
	}
	meta, err := json.Marshal(s.chunks)
	if err != nil {
		return err
	}
	if err := helper.WriteFileAtomic(s.metadataPath(), meta); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// Load restores the chunk metadata. The collection was already read from disk
// when the store was opened.
func (s *Store) Load(ctx context.Context) error {
	meta, err := os.ReadFile(s.metadataPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, s.metadataPath())
		}
		return err
	}
	var chunks []string
	if err := json.Unmarshal(meta, &chunks); err != nil {
		return fmt.Errorf("parsing metadata: %w", err)
	}
	s.chunks = chunks

	if count := s.collection.Count(); count != len(s.chunks) {
		log.Warn().
			Int("vectors", count).
			Int("chunks", len(s.chunks)).
			Msg("Vector count does not match metadata count")
	}
	return nil
}

// Search queries the collection. chromem reports cosine similarity, exposed
// here as distance 1-similarity so lower stays better.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			vectorstore.ErrDimensionMismatch, len(query), s.dim)
	}
	if k > count {
		k = count
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	hits := make([]vectorstore.Hit, 0, len(results))
	for _, res := range results {
		position, err := strconv.Atoi(res.ID)
		if err != nil {
			log.Warn().Str("id", res.ID).Msg("Skipping document with non-positional ID")
			continue
		}
		hits = append(hits, vectorstore.Hit{
			Position: position,
			Distance: 1 - float64(res.Similarity),
		})
	}
	return hits, nil
}

func (s *Store) Chunks() []string { return s.chunks }

func (s *Store) Len() int { return s.collection.Count() }
