package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/kbflow"
	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/ai/mock"
	"github.com/poiesic/kbflow/config"
	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testConfig = `
[pipeline]
chunk_size = 80
chunk_overlap = 0
max_retries = 2
retry_backoff_base_ms = 1

[storage]
path = "unused"
`

type cliEnv struct {
	dir       string
	db        string
	config    string
	failEmbed atomic.Bool
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir()}
	env.db = filepath.Join(env.dir, "db")
	env.config = filepath.Join(env.dir, "kbflow.toml")
	require.NoError(t, os.WriteFile(env.config, []byte(testConfig), 0o600))

	previous := openKnowledgebase
	openKnowledgebase = func(c *cli.Context) (*kbflow.Knowledgebase, error) {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return nil, err
		}
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
			if env.failEmbed.Load() {
				return nil, ai.ErrTimeout
			}
			return mock.Vector(text, mock.DefaultDimension), nil
		}
		provider := mock.NewMockProviderWithServices(embedder, nil, nil)
		return kbflow.Open(c.String("db"), kbflow.WithConfig(cfg), kbflow.WithProvider(provider))
	}
	t.Cleanup(func() { openKnowledgebase = previous })
	return env
}

// run executes the CLI and returns its standard output.
func (env *cliEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"kbflow", "--db", env.db, "--config", env.config}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func (env *cliEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(env.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// documentIDs extracts the ids from ingest output lines.
func documentIDs(out string) []string {
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if fields := strings.Split(line, "\t"); len(fields) == 3 {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

func TestIngestStatusAndGraph(t *testing.T) {
	env := newCLIEnv(t)
	notes := env.writeFile(t, "notes.md", "# Acme\n\nAcme Corp hired Jane Doe in Denver.\n")
	plain := env.writeFile(t, "plain.txt", "Globex ships Falcon.")

	out, err := env.run("ingest", "--dataset", "ds", "-q", notes, plain)
	require.NoError(t, err)
	ids := documentIDs(out)
	require.Len(t, ids, 2)
	assert.Contains(t, out, "completed\tnotes.md")
	assert.Contains(t, out, "completed\tplain.txt")

	out, err = env.run("status", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "status:")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "embedding:")

	out, err = env.run("list", "--dataset", "ds")
	require.NoError(t, err)
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, ids[1])

	out, err = env.run("graph", "--dataset", "ds")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Globex")
	assert.Contains(t, out, "related_to")

	out, err = env.run("graph", "--dataset", "ds", "--type", "Topic")
	require.NoError(t, err)
	assert.Contains(t, out, "Falcon")
	assert.NotContains(t, out, "related_to")
}

func TestIngestFailureAndResume(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writeFile(t, "acme.txt", "Acme Corp hired Jane Doe.")

	env.failEmbed.Store(true)
	out, err := env.run("ingest", "--dataset", "ds", "-q", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")
	ids := documentIDs(out)
	require.Len(t, ids, 1)
	assert.Contains(t, out, string(core.StatusError))

	out, err = env.run("status", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "timed out")

	env.failEmbed.Store(false)
	out, err = env.run("resume", "-q", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	_, err = env.run("resume", ids[0])
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestCancelAndPause(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writeFile(t, "acme.txt", "Acme Corp.")

	env.failEmbed.Store(true)
	out, err := env.run("ingest", "--dataset", "ds", "-q", path)
	require.Error(t, err)
	id := documentIDs(out)[0]

	// A document in error stays in error when paused.
	out, err = env.run("pause", id)
	require.NoError(t, err)
	assert.Contains(t, out, string(core.StatusError))

	out, err = env.run("cancel", id)
	require.NoError(t, err)
	assert.Contains(t, out, string(core.StatusCancelled))

	_, err = env.run("pause", id)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestCommandArguments(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("ingest", "--dataset", "ds")
	assert.ErrorContains(t, err, "at least one file")

	_, err = env.run("ingest", "notes.md")
	assert.ErrorContains(t, err, "dataset")

	_, err = env.run("status")
	assert.ErrorContains(t, err, "document id")

	_, err = env.run("status", "missing")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	run := func(level string) error {
		app := newApp()
		app.Writer = io.Discard
		app.ErrWriter = io.Discard
		app.Commands = append(app.Commands, &cli.Command{Name: "noop", Action: func(*cli.Context) error { return nil }})
		return app.Run([]string{"kbflow", "--log-level", level, "noop"})
	}

	require.NoError(t, run("DEBUG"))

	err := run("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
