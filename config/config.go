// Package config loads kbflow settings from a TOML file.
//
// A file has three optional tables:
//
//	[pipeline]
//	chunk_size = 1000
//	chunk_overlap = 200
//	embedding_batch_size = 16
//	worker_pool_size = 4
//	max_retries = 3
//	retry_backoff_base_ms = 500
//	max_backoff_ms = 30000
//	call_timeout_ms = 60000
//	rate_limit = 0
//	ner_enabled = false
//	graph_extraction_enabled = true
//
//	[ai]
//	embedding_provider = "openai"
//	embedding_host = "http://localhost:11434/v1"
//	embedding_model = "embeddinggemma"
//	extraction_provider = "openai"
//	extraction_host = "http://localhost:11434/v1"
//	extraction_model = "qwen2.5:3b"
//	api_key = ""
//	temperature = 0.0
//	streaming = false
//
//	[storage]
//	path = "kbflow.db"
//	in_memory = false
//
// Keys that are absent keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/ingestion"
)

// DefaultPath is the file read when no path is given.
const DefaultPath = "kbflow.toml"

// APIKeyEnv overrides the api_key setting when set.
const APIKeyEnv = "KBFLOW_API_KEY"

// Config is the resolved configuration.
type Config struct {
	Pipeline ingestion.Config
	AI       *ai.Config
	Storage  Storage
}

// Storage selects where the knowledge base lives.
type Storage struct {
	Path     string
	InMemory bool
}

type file struct {
	Pipeline pipelineTable `toml:"pipeline"`
	AI       aiTable       `toml:"ai"`
	Storage  storageTable  `toml:"storage"`
}

type pipelineTable struct {
	ChunkSize              int     `toml:"chunk_size"`
	ChunkOverlap           int     `toml:"chunk_overlap"`
	EmbeddingBatchSize     int     `toml:"embedding_batch_size"`
	WorkerPoolSize         int     `toml:"worker_pool_size"`
	MaxRetries             int     `toml:"max_retries"`
	RetryBackoffBaseMs     int64   `toml:"retry_backoff_base_ms"`
	MaxBackoffMs           int64   `toml:"max_backoff_ms"`
	CallTimeoutMs          int64   `toml:"call_timeout_ms"`
	RateLimit              float64 `toml:"rate_limit"`
	NEREnabled             bool    `toml:"ner_enabled"`
	GraphExtractionEnabled bool    `toml:"graph_extraction_enabled"`
}

type aiTable struct {
	EmbeddingProvider  string  `toml:"embedding_provider"`
	EmbeddingHost      string  `toml:"embedding_host"`
	EmbeddingModel     string  `toml:"embedding_model"`
	ExtractionProvider string  `toml:"extraction_provider"`
	ExtractionHost     string  `toml:"extraction_host"`
	ExtractionModel    string  `toml:"extraction_model"`
	APIKey             string  `toml:"api_key"`
	Temperature        float64 `toml:"temperature"`
	Streaming          bool    `toml:"streaming"`
}

type storageTable struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Pipeline: ingestion.DefaultConfig(),
		AI:       ai.DefaultConfig(),
		Storage:  Storage{Path: "kbflow.db"},
	}
}

// Load reads the TOML file at path. A missing file yields Default().
// Unknown keys are rejected. The result is validated; validation errors
// wrap core.ErrValidation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML configuration text.
func Parse(data []byte) (*Config, error) {
	f := fromConfig(Default())
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	cfg := f.toConfig()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage path is required", core.ErrValidation)
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(APIKeyEnv); key != "" {
		c.AI.APIKey = key
	}
}

func fromConfig(c *Config) file {
	p := c.Pipeline
	return file{
		Pipeline: pipelineTable{
			ChunkSize:              p.ChunkSize,
			ChunkOverlap:           p.ChunkOverlap,
			EmbeddingBatchSize:     p.EmbeddingBatchSize,
			WorkerPoolSize:         p.WorkerPoolSize,
			MaxRetries:             p.MaxRetries,
			RetryBackoffBaseMs:     p.RetryBackoffBase.Milliseconds(),
			MaxBackoffMs:           p.MaxBackoff.Milliseconds(),
			CallTimeoutMs:          p.CallTimeout.Milliseconds(),
			RateLimit:              p.RateLimit,
			NEREnabled:             p.NEREnabled,
			GraphExtractionEnabled: p.GraphExtractionEnabled,
		},
		AI: aiTable{
			EmbeddingProvider:  string(c.AI.EmbeddingProvider),
			EmbeddingHost:      c.AI.EmbeddingHost,
			EmbeddingModel:     c.AI.EmbeddingModel,
			ExtractionProvider: string(c.AI.ExtractionProvider),
			ExtractionHost:     c.AI.ExtractionHost,
			ExtractionModel:    c.AI.ExtractionModel,
			APIKey:             c.AI.APIKey,
			Temperature:        c.AI.Temperature,
			Streaming:          c.AI.Streaming,
		},
		Storage: storageTable{Path: c.Storage.Path, InMemory: c.Storage.InMemory},
	}
}

func (f file) toConfig() *Config {
	p := f.Pipeline
	return &Config{
		Pipeline: ingestion.Config{
			ChunkSize:              p.ChunkSize,
			ChunkOverlap:           p.ChunkOverlap,
			EmbeddingBatchSize:     p.EmbeddingBatchSize,
			WorkerPoolSize:         p.WorkerPoolSize,
			MaxRetries:             p.MaxRetries,
			RetryBackoffBase:       time.Duration(p.RetryBackoffBaseMs) * time.Millisecond,
			MaxBackoff:             time.Duration(p.MaxBackoffMs) * time.Millisecond,
			CallTimeout:            time.Duration(p.CallTimeoutMs) * time.Millisecond,
			RateLimit:              p.RateLimit,
			NEREnabled:             p.NEREnabled,
			GraphExtractionEnabled: p.GraphExtractionEnabled,
		},
		AI: &ai.Config{
			EmbeddingProvider:  ai.Provider(f.AI.EmbeddingProvider),
			EmbeddingHost:      f.AI.EmbeddingHost,
			EmbeddingModel:     f.AI.EmbeddingModel,
			ExtractionProvider: ai.Provider(f.AI.ExtractionProvider),
			ExtractionHost:     f.AI.ExtractionHost,
			ExtractionModel:    f.AI.ExtractionModel,
			APIKey:             f.AI.APIKey,
			Temperature:        f.AI.Temperature,
			Streaming:          f.AI.Streaming,
		},
		Storage: Storage{Path: f.Storage.Path, InMemory: f.Storage.InMemory},
	}
}
