package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/helper"
	"docchat/internal/vectorstore"
)

// Dependencies are the external services the pipeline drives.
type Dependencies struct {
	Embedder embedding.Embedder
	Store    vectorstore.Store
}

func (d Dependencies) validate() error {
	if d.Embedder == nil {
		return errors.New("pipeline requires an embedder")
	}
	if d.Store == nil {
		return errors.New("pipeline requires a vector store")
	}
	return nil
}

// Pipeline runs the indexing stages in order: extract, clean, chunk, embed,
// store. Completed stages are skipped unless forced or their settings changed.
type Pipeline struct {
	cfg   *config.Config
	deps  Dependencies
	runID string
}

func New(cfg *config.Config, deps Dependencies) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	runID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, deps: deps, runID: runID}, nil
}

// Run executes every stage that is not yet complete; force reruns all of
// them. The manifest is saved after each finished stage, so an interrupted
// run resumes where it stopped.
func (p *Pipeline) Run(ctx context.Context, force bool) error {
	if err := p.ensureDirs(); err != nil {
		return err
	}
	return p.run(ctx, p.stages(), force)
}

func (p *Pipeline) run(ctx context.Context, stages []Stage, force bool) error {
	manifest := LoadManifest(p.cfg.Paths.ManifestPath())

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !force && manifest.Done(stage.Name(), stage.Fingerprint()) && outputsReady(stage.Outputs()) {
			log.Info().Str("stage", stage.Name()).Msg("Stage is complete, skipping")
			continue
		}

		log.Info().Str("stage", stage.Name()).Str("run_id", p.runID).Msg("Running stage")
		start := time.Now()
		if err := stage.Run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		log.Info().Str("stage", stage.Name()).Dur("took", time.Since(start)).Msg("Stage finished")

		manifest.MarkDone(stage.Name(), stage.Fingerprint())
		if err := manifest.Save(p.cfg.Paths.ManifestPath()); err != nil {
			return fmt.Errorf("saving manifest: %w", err)
		}
	}
	return nil
}

// stages builds the stage list. Fingerprints chain: a changed setting
// invalidates its own stage and every stage after it.
func (p *Pipeline) stages() []Stage {
	paths := p.cfg.Paths
	extractFP := fmt.Sprintf("documents=%s", paths.DocumentsDir)
	chunkFP := fmt.Sprintf("%s size=%d overlap=%d", extractFP, p.cfg.Chunking.Size, p.cfg.Chunking.Overlap)
	embedFP := fmt.Sprintf("%s provider=%s model=%s dimension=%d",
		chunkFP, p.cfg.Embedding.Provider, p.cfg.Embedding.Model, p.cfg.Embedding.Dimension)
	storeFP := fmt.Sprintf("%s backend=%s", embedFP, p.cfg.Store.Backend)

	// The pgvector backend writes to the database, not to the store dir, so
	// its completeness rests on the manifest alone.
	var storeOutputs []string
	if p.cfg.Store.Backend != "pgvector" {
		storeOutputs = []string{paths.StoreDir()}
	}

	return []Stage{
		&extractStage{
			documentsDir: paths.DocumentsDir,
			outDir:       paths.ExtractedDir(),
			fingerprint:  extractFP,
		},
		&cleanStage{
			inDir:       paths.ExtractedDir(),
			outDir:      paths.CleanedDir(),
			fingerprint: extractFP,
		},
		&chunkStage{
			inDir:       paths.CleanedDir(),
			outDir:      paths.ChunksDir(),
			size:        p.cfg.Chunking.Size,
			overlap:     p.cfg.Chunking.Overlap,
			fingerprint: chunkFP,
		},
		&embedStage{
			inDir:       paths.ChunksDir(),
			outDir:      paths.EmbeddingsDir(),
			embedder:    p.deps.Embedder,
			workers:     p.cfg.Pipeline.Workers,
			fingerprint: embedFP,
		},
		&storeStage{
			inDir:       paths.EmbeddingsDir(),
			store:       p.deps.Store,
			fingerprint: storeFP,
			outputs:     storeOutputs,
		},
	}
}

func (p *Pipeline) ensureDirs() error {
	paths := p.cfg.Paths
	for _, dir := range []string{
		paths.DocumentsDir,
		paths.ExtractedDir(),
		paths.CleanedDir(),
		paths.ChunksDir(),
		paths.EmbeddingsDir(),
		paths.StoreDir(),
	} {
		if err := helper.CreateFolder(dir); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// outputsReady reports whether every declared output directory exists and is
// non-empty. Stages without outputs are judged by the manifest alone.
func outputsReady(outputs []string) bool {
	for _, dir := range outputs {
		ok, err := helper.DirHasEntries(dir)
		if err != nil || !ok {
			return false
		}
	}
	return true
}
