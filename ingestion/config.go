// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"fmt"
	"time"

	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/retry"
)

// Config holds the pipeline's tunables.
type Config struct {
	// ChunkSize is the target segment length in runes.
	ChunkSize int

	// ChunkOverlap is the number of runes shared by neighboring segments.
	ChunkOverlap int

	// EmbeddingBatchSize is how many segments are paged from storage and
	// handed to the worker pool at a time. It also applies to NER and graph
	// extraction.
	EmbeddingBatchSize int

	// WorkerPoolSize bounds concurrent external calls.
	WorkerPoolSize int

	// MaxRetries is the total number of attempts per unit, including the first.
	MaxRetries int

	// RetryBackoffBase is the wait after a unit's first failure. It doubles
	// on each further attempt.
	RetryBackoffBase time.Duration

	// MaxBackoff caps a single wait. Zero means uncapped.
	MaxBackoff time.Duration

	// CallTimeout bounds each external call.
	CallTimeout time.Duration

	// RateLimit caps external calls per second across the pool. Zero means unlimited.
	RateLimit float64

	NEREnabled             bool
	GraphExtractionEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:              1000,
		ChunkOverlap:           200,
		EmbeddingBatchSize:     16,
		WorkerPoolSize:         4,
		MaxRetries:             3,
		RetryBackoffBase:       500 * time.Millisecond,
		MaxBackoff:             30 * time.Second,
		CallTimeout:            60 * time.Second,
		NEREnabled:             false,
		GraphExtractionEnabled: true,
	}
}

// Validate checks the configuration. Errors wrap core.ErrValidation.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrValidation, c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", core.ErrValidation, c.ChunkSize, c.ChunkOverlap)
	case c.EmbeddingBatchSize <= 0:
		return fmt.Errorf("%w: embedding batch size must be positive, got %d", core.ErrValidation, c.EmbeddingBatchSize)
	case c.WorkerPoolSize <= 0:
		return fmt.Errorf("%w: worker pool size must be positive, got %d", core.ErrValidation, c.WorkerPoolSize)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: max retries must be positive, got %d", core.ErrValidation, c.MaxRetries)
	case c.RetryBackoffBase < 0, c.MaxBackoff < 0, c.CallTimeout < 0:
		return fmt.Errorf("%w: durations must not be negative", core.ErrValidation)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative", core.ErrValidation)
	}
	return nil
}

// Enabled reports whether stage runs under this configuration.
// Chunking and embedding always run.
func (c Config) Enabled(stage core.Stage) bool {
	switch stage {
	case core.StageChunking, core.StageEmbedding:
		return true
	case core.StageNER:
		return c.NEREnabled
	case core.StageGraphExtraction:
		return c.GraphExtractionEnabled
	}
	return false
}

// Stages returns the enabled stages in pipeline order.
func (c Config) Stages() []core.Stage {
	var stages []core.Stage
	for _, s := range core.Stages {
		if c.Enabled(s) {
			stages = append(stages, s)
		}
	}
	return stages
}

// RetryPolicy returns the retry policy described by the configuration.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxRetries,
		BaseDelay:   c.RetryBackoffBase,
		MaxDelay:    c.MaxBackoff,
		CallTimeout: c.CallTimeout,
	}
}
