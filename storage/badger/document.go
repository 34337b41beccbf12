package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. DocumentRepository has no resources to release.
func (r *DocumentRepository) Close() error {
	return nil
}

// AddDocument stores a new document.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	now := time.Now().UTC()
	doc.InsertedAt = now
	doc.UpdatedAt = now

	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Id)
		existing, err := readValue(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Set(makeDocumentDatasetKey(doc.DatasetId, doc.Id), nil)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		return err
	}, false)
	return result, err
}

// UpdateDocument atomically applies fn to the stored document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, id string, fn storage.DocumentFunc) (*core.Document, error) {
	var result *core.Document
	err := r.backend.Update(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		doc.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if err := tx.Set(makeDocumentKey(id), value); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetDocumentsByDataset retrieves all documents of a dataset.
func (r *DocumentRepository) GetDocumentsByDataset(ctx context.Context, datasetID string) ([]*core.Document, error) {
	var results []*core.Document
	prefix := makeDocumentDatasetPrefix(datasetID)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, prefix, func(key []byte) error {
			doc, err := readDocument(tx, string(key[len(prefix):]))
			if err != nil {
				return err
			}
			results = append(results, doc)
			return nil
		})
	}, false)
	return results, err
}

// readDocument reads a document from the transaction.
// Returns storage.ErrNotFound when it doesn't exist.
func readDocument(tx *badger.Txn, id string) (*core.Document, error) {
	data, err := readValue(tx, makeDocumentKey(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, storage.ErrNotFound
	}
	return storage.UnmarshalDocument(data)
}
