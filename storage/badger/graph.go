package badger

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// GraphRepository implements storage.GraphRepository for BadgerDB.
type GraphRepository struct {
	backend *Backend
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (*GraphRepository, error) {
	return &GraphRepository{
		backend: backend,
	}, nil
}

// Close releases resources. GraphRepository has no resources to release.
func (r *GraphRepository) Close() error {
	return nil
}

// UpsertNode inserts the node or merges it into the existing row for its key.
// Concurrent upserts of the same key conflict in badger and are re-run, so
// every writer's properties end up merged.
func (r *GraphRepository) UpsertNode(ctx context.Context, node *core.GraphNode) (*core.GraphNode, bool, error) {
	if err := core.ValidateNode(node); err != nil {
		return nil, false, err
	}

	label := core.CanonicalLabel(node.Label)
	id := core.NodeID(node.DatasetId, node.Type, label)
	key := makeNodeKey(node.DatasetId, id)

	var (
		result  *core.GraphNode
		created bool
	)
	err := r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		existing, err := readNode(tx, key)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Merge(node, now)
			result, created = existing, false
		} else {
			fresh := *node
			fresh.Id = id
			fresh.Label = label
			fresh.Properties = core.MergeProperties(nil, node.Properties)
			fresh.Mentions = 1
			fresh.CreatedAt = now
			fresh.UpdatedAt = now
			result, created = &fresh, true
		}

		value, err := storage.MarshalNode(result)
		if err != nil {
			return err
		}
		return tx.Set(key, value)
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// UpsertEdge inserts the edge or merges it into the existing row for its key.
func (r *GraphRepository) UpsertEdge(ctx context.Context, edge *core.GraphEdge) (*core.GraphEdge, bool, error) {
	if err := core.ValidateEdge(edge); err != nil {
		return nil, false, err
	}

	id := core.EdgeID(edge.DatasetId, edge.SourceNodeId, edge.TargetNodeId, edge.Type)
	key := makeEdgeKey(edge.DatasetId, id)

	var (
		result  *core.GraphEdge
		created bool
	)
	err := r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		existing, err := readEdge(tx, key)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Merge(edge, now)
			result, created = existing, false
		} else {
			fresh := *edge
			fresh.Id = id
			fresh.Properties = core.MergeProperties(nil, edge.Properties)
			fresh.Mentions = 1
			fresh.CreatedAt = now
			fresh.UpdatedAt = now
			result, created = &fresh, true

			// Adjacency index for both endpoints
			srcKey := makeAdjacencyKey(edge.DatasetId, edge.SourceNodeId, id)
			if err := tx.Set(srcKey, storage.MarshalID(edge.TargetNodeId)); err != nil {
				return err
			}
			tgtKey := makeAdjacencyKey(edge.DatasetId, edge.TargetNodeId, id)
			if err := tx.Set(tgtKey, storage.MarshalID(edge.SourceNodeId)); err != nil {
				return err
			}
		}

		value, err := storage.MarshalEdge(result)
		if err != nil {
			return err
		}
		return tx.Set(key, value)
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetNode retrieves a node by ID.
func (r *GraphRepository) GetNode(ctx context.Context, datasetID string, id core.ID) (*core.GraphNode, error) {
	var result *core.GraphNode
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readNode(tx, makeNodeKey(datasetID, id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// FindNode finds the node for a type and label within a dataset.
func (r *GraphRepository) FindNode(ctx context.Context, datasetID string, nodeType core.NodeType, label string) (*core.GraphNode, error) {
	return r.GetNode(ctx, datasetID, core.NodeID(datasetID, nodeType, label))
}

// GetNodes retrieves all nodes of a dataset.
func (r *GraphRepository) GetNodes(ctx context.Context, datasetID string) ([]*core.GraphNode, error) {
	var results []*core.GraphNode
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeNodePrefix(datasetID), func(_, val []byte) error {
			node, err := storage.UnmarshalNode(val)
			if err != nil {
				return err
			}
			results = append(results, node)
			return nil
		})
	}, false)
	return results, err
}

// GetEdges retrieves all edges of a dataset.
func (r *GraphRepository) GetEdges(ctx context.Context, datasetID string) ([]*core.GraphEdge, error) {
	var results []*core.GraphEdge
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeEdgePrefix(datasetID), func(_, val []byte) error {
			edge, err := storage.UnmarshalEdge(val)
			if err != nil {
				return err
			}
			results = append(results, edge)
			return nil
		})
	}, false)
	return results, err
}

// GetEdgesForNode retrieves the edges that start or end at a node.
func (r *GraphRepository) GetEdgesForNode(ctx context.Context, datasetID string, nodeID core.ID) ([]*core.GraphEdge, error) {
	var results []*core.GraphEdge
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, makeAdjacencyPrefix(datasetID, nodeID), func(key []byte) error {
			edgeID := core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
			edge, err := readEdge(tx, makeEdgeKey(datasetID, edgeID))
			if err != nil {
				return err
			}
			if edge != nil {
				results = append(results, edge)
			}
			return nil
		})
	}, false)
	return results, err
}

// readNode reads a node from the transaction, returning nil when absent.
func readNode(tx *badger.Txn, key []byte) (*core.GraphNode, error) {
	data, err := readValue(tx, key)
	if err != nil || data == nil {
		return nil, err
	}
	return storage.UnmarshalNode(data)
}

// readEdge reads an edge from the transaction, returning nil when absent.
func readEdge(tx *badger.Txn, key []byte) (*core.GraphEdge, error) {
	data, err := readValue(tx, key)
	if err != nil || data == nil {
		return nil, err
	}
	return storage.UnmarshalEdge(data)
}
