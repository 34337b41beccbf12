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


package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// Result counts what one extraction did to the graph.
type Result struct {
	NodesCreated int
	NodesMerged  int
	NodesSkipped int
	EdgesCreated int
	EdgesMerged  int
	EdgesDropped int
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.NodesCreated += other.NodesCreated
	r.NodesMerged += other.NodesMerged
	r.NodesSkipped += other.NodesSkipped
	r.EdgesCreated += other.EdgesCreated
	r.EdgesMerged += other.EdgesMerged
	r.EdgesDropped += other.EdgesDropped
}

// Builder applies extractions to a graph store.
// It is safe for concurrent use; deduplication is left to the store's upserts.
type Builder struct {
	repo   storage.GraphRepository
	logger *slog.Logger
}

// NewBuilder creates a Builder writing to repo.
func NewBuilder(repo storage.GraphRepository, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		repo:   repo,
		logger: logger.With("component", "graph-builder"),
	}
}

// Apply upserts the nodes and edges of ext as extracted from seg.
//
// Nodes with an empty label are skipped. Edges are resolved by label against
// the nodes of this extraction only; an edge with an unresolved endpoint is
// dropped and logged. Weights are clamped to [0, 1]. Only store failures
// are returned as errors.
func (b *Builder) Apply(ctx context.Context, seg *core.Segment, ext *ai.Extraction) (Result, error) {
	var result Result
	if ext == nil {
		return result, nil
	}

	resolved := make(map[string]core.ID, len(ext.Nodes))
	for _, n := range ext.Nodes {
		label := core.CanonicalLabel(n.Label)
		if label == "" {
			result.NodesSkipped++
			continue
		}

		stored, created, err := b.repo.UpsertNode(ctx, &core.GraphNode{
			DatasetId:  seg.DatasetId,
			DocumentId: seg.DocumentId,
			SegmentId:  seg.Id,
			Type:       NormalizeNodeType(n.Type),
			Label:      label,
			Properties: n.Properties,
		})
		if err != nil {
			return result, fmt.Errorf("upsert node %q: %w", label, err)
		}
		if created {
			result.NodesCreated++
		} else {
			result.NodesMerged++
		}

		key := core.LabelKey(label)
		if _, seen := resolved[key]; !seen {
			resolved[key] = stored.Id
		}
	}

	for _, e := range ext.Edges {
		source, okSource := resolved[core.LabelKey(e.SourceNodeLabel)]
		target, okTarget := resolved[core.LabelKey(e.TargetNodeLabel)]
		if !okSource || !okTarget {
			result.EdgesDropped++
			b.logger.Debug("dropping edge with unresolved endpoint",
				"segment", seg.Id, "source", e.SourceNodeLabel, "target", e.TargetNodeLabel, "type", e.Type)
			continue
		}

		_, created, err := b.repo.UpsertEdge(ctx, &core.GraphEdge{
			DatasetId:    seg.DatasetId,
			SourceNodeId: source,
			TargetNodeId: target,
			Type:         NormalizeEdgeType(e.Type),
			Weight:       clampWeight(e.Weight),
			Properties:   e.Properties,
		})
		if err != nil {
			return result, fmt.Errorf("upsert edge %q -> %q: %w", e.SourceNodeLabel, e.TargetNodeLabel, err)
		}
		if created {
			result.EdgesCreated++
		} else {
			result.EdgesMerged++
		}
	}

	return result, nil
}

func clampWeight(w *float64) *float64 {
	if w == nil || math.IsNaN(*w) {
		return nil
	}
	v := math.Min(1, math.Max(0, *w))
	return &v
}
