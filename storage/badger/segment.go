package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// SegmentRepository implements storage.SegmentRepository for BadgerDB.
type SegmentRepository struct {
	backend *Backend
}

var _ storage.SegmentRepository = (*SegmentRepository)(nil)

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(backend *Backend) (*SegmentRepository, error) {
	return &SegmentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. SegmentRepository has no resources to release.
func (r *SegmentRepository) Close() error {
	return nil
}

// ReplaceSegments removes the document's existing segments and stores the new set.
// Writes go through a WriteBatch so large documents are not limited by the
// transaction size.
func (r *SegmentRepository) ReplaceSegments(ctx context.Context, documentID string, segments []*core.Segment) error {
	var stale [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeSegmentPrefix(documentID), func(key, val []byte) error {
			seg, err := storage.UnmarshalSegment(val)
			if err != nil {
				return err
			}
			stale = append(stale, key, makeSegmentIDKey(seg.Id))
			return nil
		})
	}, false)
	if err != nil {
		return err
	}

	rewritten := make(map[string]struct{}, 2*len(segments))
	for _, seg := range segments {
		if seg.DocumentId != documentID {
			return fmt.Errorf("segment %d belongs to %q, not %q", seg.Id, seg.DocumentId, documentID)
		}
		rewritten[string(makeSegmentKey(documentID, seg.Position))] = struct{}{}
		rewritten[string(makeSegmentIDKey(seg.Id))] = struct{}{}
	}

	wb := r.backend.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		if _, ok := rewritten[string(key)]; ok {
			continue
		}
		if err := wb.Delete(key); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, seg := range segments {
		if seg.InsertedAt.IsZero() {
			seg.InsertedAt = now
		}
		seg.UpdatedAt = now

		value, err := storage.MarshalSegment(seg)
		if err != nil {
			return err
		}
		if err := wb.Set(makeSegmentKey(documentID, seg.Position), value); err != nil {
			return err
		}
		ref := storage.SegmentRef{DocumentId: documentID, Position: seg.Position}
		if err := wb.Set(makeSegmentIDKey(seg.Id), storage.MarshalSegmentRef(ref)); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// GetSegment retrieves a segment by ID.
func (r *SegmentRepository) GetSegment(ctx context.Context, id core.ID) (*core.Segment, error) {
	var result *core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, _, err = readSegmentByID(tx, id)
		return err
	}, false)
	return result, err
}

// GetSegments retrieves all segments of a document ordered by position.
func (r *SegmentRepository) GetSegments(ctx context.Context, documentID string) ([]*core.Segment, error) {
	var results []*core.Segment
	err := r.ForEachSegmentBatch(ctx, documentID, 256, func(batch []*core.Segment) error {
		results = append(results, batch...)
		return nil
	})
	return results, err
}

// ForEachSegmentBatch calls fn with consecutive batches of segments in position order.
// Each batch is read in its own transaction and fn runs outside of it, so fn
// may write to the repository.
func (r *SegmentRepository) ForEachSegmentBatch(ctx context.Context, documentID string, batchSize int, fn func([]*core.Segment) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", storage.ErrInvalidQuery)
	}

	prefix := makeSegmentPrefix(documentID)
	seek := prefix
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]*core.Segment, 0, batchSize)
		var next []byte
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Seek(seek); iter.Valid(); iter.Next() {
				item := iter.Item()
				if len(batch) == batchSize {
					next = item.KeyCopy(nil)
					return nil
				}
				var seg *core.Segment
				err := item.Value(func(val []byte) error {
					var err error
					seg, err = storage.UnmarshalSegment(val)
					return err
				})
				if err != nil {
					return err
				}
				batch = append(batch, seg)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}
		if next == nil {
			return nil
		}
		seek = next
	}
}

// UpdateSegment atomically applies fn to the stored segment.
func (r *SegmentRepository) UpdateSegment(ctx context.Context, id core.ID, fn storage.SegmentFunc) (*core.Segment, error) {
	var result *core.Segment
	err := r.backend.Update(func(tx *badger.Txn) error {
		seg, key, err := readSegmentByID(tx, id)
		if err != nil {
			return err
		}
		if err := fn(seg); err != nil {
			return err
		}
		seg.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalSegment(seg)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		result = seg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountSegments returns the number of segments stored for a document.
func (r *SegmentRepository) CountSegments(ctx context.Context, documentID string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, makeSegmentPrefix(documentID), func([]byte) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// readSegmentByID resolves the ID index and reads the segment.
// Returns the segment and its primary key, or storage.ErrNotFound.
func readSegmentByID(tx *badger.Txn, id core.ID) (*core.Segment, []byte, error) {
	refData, err := readValue(tx, makeSegmentIDKey(id))
	if err != nil {
		return nil, nil, err
	}
	if refData == nil {
		return nil, nil, storage.ErrNotFound
	}
	ref, err := storage.UnmarshalSegmentRef(refData)
	if err != nil {
		return nil, nil, err
	}

	key := makeSegmentKey(ref.DocumentId, ref.Position)
	data, err := readValue(tx, key)
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, storage.ErrNotFound
	}
	seg, err := storage.UnmarshalSegment(data)
	if err != nil {
		return nil, nil, err
	}
	return seg, key, nil
}
