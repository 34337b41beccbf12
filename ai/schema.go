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

import "github.com/poiesic/kbflow/core"

// DefaultGraphJSONSchema is the JSON schema of the canonical extraction
// payload.
const DefaultGraphJSONSchema = `{
  "type": "object",
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "label": {"type": "string"},
          "properties": {"type": "object"}
        },
        "required": ["type", "label"]
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "sourceNodeLabel": {"type": "string"},
          "targetNodeLabel": {"type": "string"},
          "type": {"type": "string"},
          "weight": {"type": "number", "minimum": 0, "maximum": 1},
          "properties": {"type": "object"}
        },
        "required": ["sourceNodeLabel", "targetNodeLabel", "type"]
      }
    }
  },
  "required": ["nodes", "edges"]
}`

// GraphSchema is the target a GraphExtractor asks the model to fill.
// Zero fields fall back to the defaults.
type GraphSchema struct {
	// JSON is the JSON schema the answer must follow.
	JSON string

	// NodeTypes and EdgeTypes are the types the model may emit.
	NodeTypes []string
	EdgeTypes []string
}

// DefaultGraphSchema returns the canonical extraction payload schema with
// every canonical node and edge type.
func DefaultGraphSchema() GraphSchema {
	return GraphSchema{
		JSON:      DefaultGraphJSONSchema,
		NodeTypes: typeNames(core.NodeTypes),
		EdgeTypes: typeNames(core.EdgeTypes),
	}
}

// OrDefault returns s with its empty fields taken from DefaultGraphSchema.
func (s GraphSchema) OrDefault() GraphSchema {
	def := DefaultGraphSchema()
	if s.JSON == "" {
		s.JSON = def.JSON
	}
	if len(s.NodeTypes) == 0 {
		s.NodeTypes = def.NodeTypes
	}
	if len(s.EdgeTypes) == 0 {
		s.EdgeTypes = def.EdgeTypes
	}
	return s
}

func typeNames[T ~string](types []T) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
