package badger

import (
	"testing"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/require"
)

func storageID(n int) core.ID {
	return core.ID(n)
}

func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}
