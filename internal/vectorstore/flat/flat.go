package flat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"docchat/internal/helper"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

const (
	IndexFile    = "vectors.index"
	MetadataFile = "metadata.json"
)

var _ vectorstore.Store = (*Store)(nil)

// Store is an exact nearest-neighbour index over squared L2 distance, kept
// fully in memory and persisted as a flat binary file plus a JSON metadata
// file holding the chunk texts in the same order.
type Store struct {
	dir    string
	dim    int
	vecs   [][]float32
	chunks []string
}

func New(dir string, dim int) *Store {
	return &Store{dir: dir, dim: dim}
}

func (s *Store) indexPath() string    { return filepath.Join(s.dir, IndexFile) }
func (s *Store) metadataPath() string { return filepath.Join(s.dir, MetadataFile) }

// Build validates record dimensions and loads them into memory.
func (s *Store) Build(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return vectorstore.ErrNoRecords
	}
	vecs := make([][]float32, len(records))
	chunks := make([]string, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != s.dim {
			return fmt.Errorf("%w: record %d has dimension %d, want %d",
				vectorstore.ErrDimensionMismatch, i, len(rec.Embedding), s.dim)
		}
		vecs[i] = rec.Embedding
		chunks[i] = rec.ChunkText
	}
	s.vecs = vecs
	s.chunks = chunks
	return nil
}

// Persist writes the index and metadata files, each atomically.
func (s *Store) Persist(ctx context.Context) error {
	if err := helper.CreateFolder(s.dir); err != nil {
		return err
	}
	if err := helper.WriteFileAtomic(s.indexPath(), s.marshalVectors()); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	meta, err := json.Marshal(s.chunks)
	if err != nil {
		return err
	}
	if err := helper.WriteFileAtomic(s.metadataPath(), meta); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	log.Info().Int("vectors", len(s.vecs)).Str("dir", s.dir).Msg("Persisted vector store")
	return nil
}

// Load reads both artifacts back. A count mismatch between index and
// metadata is logged but not fatal; retrieval drops unmapped positions.
func (s *Store) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, s.indexPath())
		}
		return err
	}
	if err := s.unmarshalVectors(data); err != nil {
		return err
	}

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

	if len(s.chunks) != len(s.vecs) {
		log.Warn().
			Int("vectors", len(s.vecs)).
			Int("chunks", len(s.chunks)).
			Msg("Vector count does not match metadata count")
	}
	return nil
}

// Search scans every vector and returns the k nearest by squared L2 distance.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	if len(s.vecs) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			vectorstore.ErrDimensionMismatch, len(query), s.dim)
	}
	hits := make([]vectorstore.Hit, len(s.vecs))
	for i, vec := range s.vecs {
		hits[i] = vectorstore.Hit{Position: i, Distance: squaredL2(query, vec)}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Position < hits[b].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (s *Store) Chunks() []string { return s.chunks }

func (s *Store) Len() int { return len(s.vecs) }

// marshalVectors stores: dim(uint32), n(uint32), then n*dim float32 values,
// all little-endian.
func (s *Store) marshalVectors() []byte {
	out := make([]byte, 0, 8+4*s.dim*len(s.vecs))
	var scratch [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:], v)
		out = append(out, scratch[:]...)
	}
	putU32(uint32(s.dim))
	putU32(uint32(len(s.vecs)))
	for _, vec := range s.vecs {
		for _, v := range vec {
			putU32(math.Float32bits(v))
		}
	}
	return out
}

func (s *Store) unmarshalVectors(data []byte) error {
	if len(data) < 8 {
		return errors.New("invalid index file")
	}
	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	n := int(binary.LittleEndian.Uint32(data[4:8]))
	if dim != s.dim {
		return fmt.Errorf("%w: index has dimension %d, configured %d",
			vectorstore.ErrDimensionMismatch, dim, s.dim)
	}
	if len(data) != 8+4*dim*n {
		return fmt.Errorf("index file has %d bytes, want %d for %d vectors", len(data), 8+4*dim*n, n)
	}
	vecs := make([][]float32, n)
	off := 8
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vecs[i] = vec
	}
	s.vecs = vecs
	return nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
