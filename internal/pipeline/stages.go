package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"docchat/internal/chunker"
	"docchat/internal/cleaner"
	"docchat/internal/embedding"
	"docchat/internal/models"
	"docchat/internal/parser"
	"docchat/internal/vectorstore"
)

// Stage is one step of the indexing pipeline. Fingerprint captures every
// setting that shapes the stage's output, including upstream settings, so a
// config change reruns the stage and everything after it.
type Stage interface {
	Name() string
	Fingerprint() string
	Outputs() []string
	Run(ctx context.Context) error
}

// extractStage pulls plain text out of every supported document and writes it
// as <stem>.txt. Files that cannot be parsed are skipped.
type extractStage struct {
	documentsDir string
	outDir       string
	fingerprint  string
}

func (s *extractStage) Name() string        { return "extract" }
func (s *extractStage) Fingerprint() string { return s.fingerprint }
func (s *extractStage) Outputs() []string   { return []string{s.outDir} }

func (s *extractStage) Run(ctx context.Context) error {
	entries, err := os.ReadDir(s.documentsDir)
	if err != nil {
		return fmt.Errorf("reading documents directory: %w", err)
	}

	extracted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.documentsDir, entry.Name())
		if !parser.Supported(path) {
			log.Debug().Str("file", entry.Name()).Msg("Skipping unsupported file")
			continue
		}
		doc, err := parser.Parse(path)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Could not extract text, skipping")
			continue
		}
		outPath := filepath.Join(s.outDir, doc.Name+".txt")
		if err := os.WriteFile(outPath, []byte(doc.Text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		extracted++
	}
	if extracted == 0 {
		log.Warn().Str("dir", s.documentsDir).Msg("No documents extracted")
	}
	return nil
}

// cleanStage normalizes the extracted text files.
type cleanStage struct {
	inDir       string
	outDir      string
	fingerprint string
}

func (s *cleanStage) Name() string        { return "clean" }
func (s *cleanStage) Fingerprint() string { return s.fingerprint }
func (s *cleanStage) Outputs() []string   { return []string{s.outDir} }

func (s *cleanStage) Run(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(s.inDir, "*.txt"))
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Could not read extracted text, skipping")
			continue
		}
		outPath := filepath.Join(s.outDir, filepath.Base(path))
		if err := os.WriteFile(outPath, []byte(cleaner.Clean(string(data))), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
	}
	return nil
}

// chunkStage splits each cleaned document into overlapping windows and writes
// them as an ordered JSON array. Documents with no text produce no file.
type chunkStage struct {
	inDir       string
	outDir      string
	size        int
	overlap     int
	fingerprint string
}

func (s *chunkStage) Name() string        { return "chunk" }
func (s *chunkStage) Fingerprint() string { return s.fingerprint }
func (s *chunkStage) Outputs() []string   { return []string{s.outDir} }

func (s *chunkStage) Run(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(s.inDir, "*.txt"))
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Could not read cleaned text, skipping")
			continue
		}
		chunks, err := chunker.Split(string(data), s.size, s.overlap)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(filepath.Base(path), ".txt")
		if len(chunks) == 0 {
			log.Debug().Str("document", stem).Msg("Document has no text, skipping")
			continue
		}
		out, err := json.Marshal(chunks)
		if err != nil {
			return err
		}
		outPath := filepath.Join(s.outDir, stem+"_chunks.json")
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		log.Debug().Str("document", stem).Int("chunks", len(chunks)).Msg("Chunked document")
	}
	return nil
}

// embedStage turns every chunk file into an embedding file, one embedding
// service call per document. Files are processed concurrently; per-file read
// and parse problems are skipped, a failing embedder aborts the stage.
type embedStage struct {
	inDir       string
	outDir      string
	embedder    embedding.Embedder
	workers     int
	fingerprint string
}

func (s *embedStage) Name() string        { return "embed" }
func (s *embedStage) Fingerprint() string { return s.fingerprint }
func (s *embedStage) Outputs() []string   { return []string{s.outDir} }

func (s *embedStage) Run(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(s.inDir, "*_chunks.json"))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			return s.embedFile(ctx, path)
		})
	}
	return g.Wait()
}

func (s *embedStage) embedFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Could not read chunk file, skipping")
		return nil
	}
	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Malformed chunk file, skipping")
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", filepath.Base(path), err)
	}

	records := make([]models.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = models.EmbeddingRecord{ChunkText: chunk, Embedding: vecs[i]}
	}
	out, err := json.Marshal(records)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(path), "_chunks.json")
	outPath := filepath.Join(s.outDir, stem+"_embeddings.json")
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	log.Debug().Str("document", stem).Int("chunks", len(chunks)).Msg("Embedded document")
	return nil
}

// storeStage reads every embedding file in filename order, flattens the
// records and hands them to the vector store. Any unreadable embedding file
// fails the stage so a partial index is never persisted.
type storeStage struct {
	inDir       string
	store       vectorstore.Store
	fingerprint string
	outputs     []string
}

func (s *storeStage) Name() string        { return "store" }
func (s *storeStage) Fingerprint() string { return s.fingerprint }
func (s *storeStage) Outputs() []string   { return s.outputs }

func (s *storeStage) Run(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(s.inDir, "*_embeddings.json"))
	if err != nil {
		return err
	}

	var records []models.EmbeddingRecord
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		var recs []models.EmbeddingRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		records = append(records, recs...)
	}

	if err := s.store.Build(ctx, records); err != nil {
		return err
	}
	if err := s.store.Persist(ctx); err != nil {
		return err
	}
	log.Info().Int("records", len(records)).Msg("Vector store built")
	return nil
}
