package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, ingestion.DefaultConfig(), cfg.Pipeline)
	assert.Equal(t, ai.DefaultConfig(), cfg.AI)
	assert.Equal(t, "kbflow.db", cfg.Storage.Path)
}

func TestLoad(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	path := filepath.Join(t.TempDir(), "kbflow.toml")
	content := `
[pipeline]
chunk_size = 500
chunk_overlap = 50
worker_pool_size = 8
max_retries = 5
retry_backoff_base_ms = 250
call_timeout_ms = 10000
ner_enabled = true

[ai]
embedding_provider = "ollama"
embedding_host = "http://gpu-box:11434/v1"
extraction_provider = "anthropic"
extraction_model = "claude-haiku"
api_key = "secret"
streaming = true

[storage]
in_memory = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 50, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 8, cfg.Pipeline.WorkerPoolSize)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.RetryBackoffBase)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.CallTimeout)
	assert.True(t, cfg.Pipeline.NEREnabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, 16, cfg.Pipeline.EmbeddingBatchSize)
	assert.True(t, cfg.Pipeline.GraphExtractionEnabled)

	assert.Equal(t, ai.ProviderOllama, cfg.AI.EmbeddingProvider)
	assert.Equal(t, "http://gpu-box:11434", cfg.AI.EmbeddingHost, "ollama hosts are normalized")
	assert.Equal(t, ai.ProviderAnthropic, cfg.AI.ExtractionProvider)
	assert.Equal(t, "claude-haiku", cfg.AI.ExtractionModel)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.True(t, cfg.AI.Streaming)
	assert.True(t, cfg.Storage.InMemory)
}

func TestParse_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")

	cfg, err := Parse([]byte("[ai]\napi_key = \"from-file\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	tests := []struct {
		name    string
		content string
	}{
		{"syntax error", "[pipeline\nchunk_size = 1"},
		{"unknown key", "[pipeline]\nchunk_sise = 10"},
		{"wrong type", "[pipeline]\nchunk_size = \"big\""},
		{"overlap too large", "[pipeline]\nchunk_size = 100\nchunk_overlap = 100"},
		{"zero retries", "[pipeline]\nmax_retries = 0"},
		{"unknown provider", "[ai]\nextraction_provider = \"bedrock\""},
		{"no storage path", "[storage]\npath = \"\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestLoad_PropagatesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pipeline]\nmax_retries = -1\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
