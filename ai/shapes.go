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


package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// responseShape describes how one provider's raw output is turned into the
// canonical payload: isolate pulls the JSON document out of the raw text,
// decode maps that document onto Extraction.
type responseShape struct {
	isolate func(raw string) (string, error)
	decode  func(payload string) (*Extraction, error)
}

// shapes is the per-provider response table. Adding a provider means adding
// a row here, not touching the graph stage.
var shapes = map[Provider]responseShape{
	// JSON mode: a bare canonical object, sometimes fenced.
	ProviderOpenAI: {isolate: isolateBare, decode: decodeCanonical},
	// JSON format: the object is bare but key names drift.
	ProviderOllama: {isolate: isolateBare, decode: decodeLoose},
	// No JSON mode: prose around a fenced or inline object.
	ProviderAnthropic: {isolate: isolateProse, decode: decodeCanonical},
}

// DecodeExtraction decodes raw model output from provider p into the
// canonical extraction shape. Any decoding failure wraps ErrMalformedResponse.
func DecodeExtraction(p Provider, raw string) (*Extraction, error) {
	shape, ok := shapes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	payload, err := shape.isolate(raw)
	if err != nil {
		return nil, err
	}
	return shape.decode(payload)
}

// DecodeEntities decodes raw NER output from provider p. Both
// {"entities": [...]} and a bare array are accepted.
func DecodeEntities(p Provider, raw string) ([]RecognizedEntity, error) {
	shape, ok := shapes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	payload, err := isolateEntities(shape, raw)
	if err != nil {
		return nil, err
	}

	var entities []RecognizedEntity
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &entities); err != nil {
			return nil, malformed(err)
		}
	} else {
		var wrapper struct {
			Entities *[]RecognizedEntity `json:"entities"`
		}
		if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
			return nil, malformed(err)
		}
		if wrapper.Entities == nil {
			return nil, fmt.Errorf("%w: missing entities", ErrMalformedResponse)
		}
		entities = *wrapper.Entities
	}

	kept := entities[:0]
	for _, e := range entities {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text == "" {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

func isolateEntities(shape responseShape, raw string) (string, error) {
	trimmed := stripFences(raw)
	if strings.HasPrefix(trimmed, "[") {
		return repairJSON(trimmed), nil
	}
	return shape.isolate(raw)
}

func isolateBare(raw string) (string, error) {
	s := stripFences(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if !strings.HasPrefix(s, "{") {
		obj, ok := firstObject(s)
		if !ok {
			return "", fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
		}
		s = obj
	}
	return repairJSON(s), nil
}

func isolateProse(raw string) (string, error) {
	if block, ok := fencedBlock(raw); ok {
		if obj, ok := firstObject(block); ok {
			return repairJSON(obj), nil
		}
	}
	obj, ok := firstObject(raw)
	if !ok {
		return "", fmt.Errorf("%w: no JSON object in prose", ErrMalformedResponse)
	}
	return repairJSON(obj), nil
}

func decodeCanonical(payload string) (*Extraction, error) {
	var doc struct {
		Nodes *[]ExtractedNode `json:"nodes"`
		Edges []ExtractedEdge  `json:"edges"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, malformed(err)
	}
	if doc.Nodes == nil {
		return nil, fmt.Errorf("%w: missing nodes", ErrMalformedResponse)
	}
	return &Extraction{Nodes: *doc.Nodes, Edges: doc.Edges}, nil
}

type looseNode struct {
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

type looseEdge struct {
	SourceNodeLabel string         `json:"sourceNodeLabel"`
	Source          string         `json:"source"`
	TargetNodeLabel string         `json:"targetNodeLabel"`
	Target          string         `json:"target"`
	Type            string         `json:"type"`
	Relation        string         `json:"relation"`
	Weight          *float64       `json:"weight"`
	Properties      map[string]any `json:"properties"`
}

func decodeLoose(payload string) (*Extraction, error) {
	var doc struct {
		Nodes         *[]looseNode `json:"nodes"`
		Entities      *[]looseNode `json:"entities"`
		Edges         []looseEdge  `json:"edges"`
		Relationships []looseEdge  `json:"relationships"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, malformed(err)
	}

	var nodes []looseNode
	switch {
	case doc.Nodes != nil:
		nodes = *doc.Nodes
	case doc.Entities != nil:
		nodes = *doc.Entities
	default:
		return nil, fmt.Errorf("%w: missing nodes", ErrMalformedResponse)
	}
	edges := doc.Edges
	if len(edges) == 0 {
		edges = doc.Relationships
	}

	out := &Extraction{
		Nodes: make([]ExtractedNode, 0, len(nodes)),
		Edges: make([]ExtractedEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, ExtractedNode{
			Type:       n.Type,
			Label:      firstNonEmpty(n.Label, n.Name),
			Properties: n.Properties,
		})
	}
	for _, e := range edges {
		out.Edges = append(out.Edges, ExtractedEdge{
			SourceNodeLabel: firstNonEmpty(e.SourceNodeLabel, e.Source),
			TargetNodeLabel: firstNonEmpty(e.TargetNodeLabel, e.Target),
			Type:            firstNonEmpty(e.Type, e.Relation),
			Weight:          e.Weight,
			Properties:      e.Properties,
		})
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
}
