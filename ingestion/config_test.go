package ingestion

import (
	"testing"
	"time"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.GraphExtractionEnabled)
	assert.False(t, cfg.NEREnabled)
	assert.Equal(t, []core.Stage{core.StageChunking, core.StageEmbedding, core.StageGraphExtraction}, cfg.Stages())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"overlap not below size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero batch size", func(c *Config) { c.EmbeddingBatchSize = 0 }},
		{"zero pool size", func(c *Config) { c.WorkerPoolSize = 0 }},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }},
		{"negative backoff", func(c *Config) { c.RetryBackoffBase = -time.Second }},
		{"negative timeout", func(c *Config) { c.CallTimeout = -time.Second }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrValidation)
		})
	}
}

func TestConfig_Enabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NEREnabled = true
	cfg.GraphExtractionEnabled = false

	assert.True(t, cfg.Enabled(core.StageChunking))
	assert.True(t, cfg.Enabled(core.StageEmbedding))
	assert.True(t, cfg.Enabled(core.StageNER))
	assert.False(t, cfg.Enabled(core.StageGraphExtraction))
	assert.False(t, cfg.Enabled("unknown"))
	assert.Equal(t, []core.Stage{core.StageChunking, core.StageEmbedding, core.StageNER}, cfg.Stages())
}

func TestConfig_RetryPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 4
	cfg.RetryBackoffBase = 100 * time.Millisecond
	cfg.MaxBackoff = 300 * time.Millisecond

	policy := cfg.RetryPolicy()
	require.NoError(t, policy.Validate())
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, cfg.CallTimeout, policy.CallTimeout)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, policy.Delays())
}
