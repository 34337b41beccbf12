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


package core

import (
	"encoding/binary"
	"maps"
	"strings"
	"time"
)

// NodeType is a canonical graph node type.
type NodeType string

const (
	NodeTypePerson       NodeType = "person"
	NodeTypeOrganization NodeType = "organization"
	NodeTypeProduct      NodeType = "product"
	NodeTypeLocation     NodeType = "location"
	NodeTypeEvent        NodeType = "event"
	NodeTypeConcept      NodeType = "concept"
	NodeTypeTopic        NodeType = "topic"

	// DefaultNodeType absorbs any type the synonym table does not recognize.
	DefaultNodeType = NodeTypeTopic
)

// NodeTypes lists every canonical node type.
var NodeTypes = []NodeType{
	NodeTypePerson, NodeTypeOrganization, NodeTypeProduct, NodeTypeLocation,
	NodeTypeEvent, NodeTypeConcept, NodeTypeTopic,
}

// EdgeType is a canonical relationship type.
type EdgeType string

const (
	EdgeTypeMentions   EdgeType = "mentions"
	EdgeTypeRelatedTo  EdgeType = "related_to"
	EdgeTypeInfluences EdgeType = "influences"
	EdgeTypePartOf     EdgeType = "part_of"
	EdgeTypeLocatedIn  EdgeType = "located_in"
	EdgeTypeWorksFor   EdgeType = "works_for"
	EdgeTypeProvides   EdgeType = "provides"
	EdgeTypeUses       EdgeType = "uses"
	EdgeTypeDependsOn  EdgeType = "depends_on"
	EdgeTypeCreatedBy  EdgeType = "created_by"

	// DefaultEdgeType absorbs any relationship the synonym table does not recognize.
	DefaultEdgeType = EdgeTypeRelatedTo
)

// EdgeTypes lists every canonical edge type.
var EdgeTypes = []EdgeType{
	EdgeTypeMentions, EdgeTypeRelatedTo, EdgeTypeInfluences, EdgeTypePartOf, EdgeTypeLocatedIn,
	EdgeTypeWorksFor, EdgeTypeProvides, EdgeTypeUses, EdgeTypeDependsOn, EdgeTypeCreatedBy,
}

// CanonicalLabel trims surrounding whitespace from an extracted label.
func CanonicalLabel(label string) string {
	return strings.TrimSpace(label)
}

// LabelKey is the comparison form of a label: trimmed, inner whitespace
// collapsed to single spaces, lowercased.
func LabelKey(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// NodeID returns the ID of the unique node for (dataset, type, label).
func NodeID(datasetID string, nodeType NodeType, label string) ID {
	return IDFromContent("node\x00" + datasetID + "\x00" + string(nodeType) + "\x00" + LabelKey(label))
}

// EdgeID returns the ID of the unique edge for (dataset, source, target, type).
func EdgeID(datasetID string, source, target ID, edgeType EdgeType) ID {
	var b strings.Builder
	b.WriteString("edge\x00")
	b.WriteString(datasetID)
	b.WriteByte(0)
	b.Write(binary.BigEndian.AppendUint64(nil, uint64(source)))
	b.Write(binary.BigEndian.AppendUint64(nil, uint64(target)))
	b.WriteString(string(edgeType))
	return IDFromContent(b.String())
}

// MergeProperties overlays incoming onto existing. Non-nil incoming values
// overwrite; everything else in existing is retained. Neither map is modified.
func MergeProperties(existing, incoming map[string]any) map[string]any {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	out := make(map[string]any, len(existing)+len(incoming))
	maps.Copy(out, existing)
	for k, v := range incoming {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// Merge folds a new extraction of the same node into n. Identity fields and
// the first-seen label are kept.
func (n *GraphNode) Merge(incoming *GraphNode, now time.Time) {
	n.Properties = MergeProperties(n.Properties, incoming.Properties)
	n.Mentions++
	n.UpdatedAt = now
}

// Merge folds a new extraction of the same edge into e. The weight is
// reinforced to the larger of the two values.
func (e *GraphEdge) Merge(incoming *GraphEdge, now time.Time) {
	e.Properties = MergeProperties(e.Properties, incoming.Properties)
	if incoming.Weight != nil && (e.Weight == nil || *incoming.Weight > *e.Weight) {
		w := *incoming.Weight
		e.Weight = &w
	}
	e.Mentions++
	e.UpdatedAt = now
}
