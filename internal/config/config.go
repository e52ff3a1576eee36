package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 3
	defaultWorkers      = 4
	defaultDimension    = 384
	defaultOllamaURL    = "http://localhost:11434"
)

type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// PathsConfig holds the two root directories; every pipeline artifact path is
// derived from DataDir.
type PathsConfig struct {
	DocumentsDir string `yaml:"documents_dir"`
	DataDir      string `yaml:"data_dir"`
}

func (p PathsConfig) ExtractedDir() string  { return filepath.Join(p.DataDir, "extracted") }
func (p PathsConfig) CleanedDir() string    { return filepath.Join(p.DataDir, "cleaned") }
func (p PathsConfig) ChunksDir() string     { return filepath.Join(p.DataDir, "chunks") }
func (p PathsConfig) EmbeddingsDir() string { return filepath.Join(p.DataDir, "embeddings") }
func (p PathsConfig) StoreDir() string      { return filepath.Join(p.DataDir, "store") }
func (p PathsConfig) ManifestPath() string  { return filepath.Join(p.DataDir, "manifest.json") }

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// LLMConfig covers any Ollama or OpenAI-compatible endpoint.
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Key            string `yaml:"key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EmbeddingConfig struct {
	LLMConfig `yaml:",inline"`
	Dimension int `yaml:"dimension"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Database DatabaseConfig `yaml:"database"`
}

type ChromemConfig struct {
	Collection string `yaml:"collection"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// LoadConfig reads the config from path. A missing file is not an error; the
// defaults are returned instead.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

// applyEnv fills secrets that should not live in the config file.
func applyEnv(cfg *Config) {
	if cfg.Embedding.Key == "" {
		cfg.Embedding.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.Key == "" {
		cfg.LLM.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Store.Database.Password == "" {
		cfg.Store.Database.Password = os.Getenv("DOCCHAT_DB_PASSWORD")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Paths.DocumentsDir == "" {
		cfg.Paths.DocumentsDir = "documents"
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = defaultChunkSize
		if cfg.Chunking.Overlap == 0 {
			cfg.Chunking.Overlap = defaultChunkOverlap
		}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaultOllamaURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = defaultDimension
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 120
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultOllamaURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral:7b-instruct"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "flat"
	}
	if cfg.Store.Chromem.Collection == "" {
		cfg.Store.Chromem.Collection = "documents"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = defaultTopK
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = defaultWorkers
	}
}

func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported embedding.provider: %q", c.Embedding.Provider)
	}
	if c.LLM.Provider != "ollama" {
		return fmt.Errorf("unsupported llm.provider: %q", c.LLM.Provider)
	}
	switch c.Store.Backend {
	case "flat", "chromem", "pgvector":
	default:
		return fmt.Errorf("unsupported store.backend: %q", c.Store.Backend)
	}
	if c.Store.Backend == "pgvector" && c.Store.Database.URL == "" {
		return fmt.Errorf("store.database.url is required for the pgvector backend")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}
