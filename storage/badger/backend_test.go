package badger

import (
	"errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir+"/db", false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestBackendUpdate_ConcurrentIncrements(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		perWorker int
	}{
		{name: "few writers", workers: 8, perWorker: 25},
		{name: "hot key", workers: 64, perWorker: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := OpenBackend("", true)
			require.NoError(t, err)
			defer backend.Close()

			key := []byte("counter")
			var wg sync.WaitGroup
			for range tt.workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range tt.perWorker {
						assert.NoError(t, backend.Update(func(tx *badger.Txn) error {
							return increment(tx, key)
						}))
					}
				}()
			}
			wg.Wait()

			err = backend.WithTx(func(tx *badger.Txn) error {
				val, err := readValue(tx, key)
				require.NoError(t, err)
				id, err := storage.UnmarshalID(val)
				require.NoError(t, err)
				assert.Equal(t, tt.workers*tt.perWorker, int(id))
				return nil
			}, false)
			require.NoError(t, err)
		})
	}
}

func increment(tx *badger.Txn, key []byte) error {
	val, err := readValue(tx, key)
	if err != nil {
		return err
	}
	n := 0
	if val != nil {
		id, err := storage.UnmarshalID(val)
		if err != nil {
			return err
		}
		n = int(id)
	}
	return tx.Set(key, storage.MarshalID(storageID(n+1)))
}

func TestBackendUpdate_ClosedIsNotRetried(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	calls := 0
	err = backend.Update(func(tx *badger.Txn) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.Zero(t, calls)
}

func TestBackendUpdate_CallbackErrorIsReturned(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	boom := errors.New("boom")
	err = backend.Update(func(tx *badger.Txn) error {
		require.NoError(t, tx.Set([]byte("k"), []byte("v")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = backend.WithTx(func(tx *badger.Txn) error {
		val, err := readValue(tx, []byte("k"))
		require.NoError(t, err)
		assert.Nil(t, val, "failed update must not commit")
		return nil
	}, false)
	require.NoError(t, err)
}
