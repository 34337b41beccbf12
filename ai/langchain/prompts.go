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


package langchain

import (
	"fmt"
	"strings"

	"github.com/poiesic/kbflow/ai"
	"github.com/poiesic/kbflow/core"
)

const graphPromptTemplate = `Extract a knowledge graph from the given text and return it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Node type must be one of: %s.
- Edge type must be one of: %s.
- Labels are the name of the entity as written in the text.
- Every edge must reference nodes by their exact label, and both nodes must appear in "nodes".
- Weight is your confidence in the relationship, from 0 to 1.
- Include only entities and relationships explicitly stated or clearly implied by the text. Do not hallucinate.
- If nothing can be extracted, return {"nodes": [], "edges": []}.

Example:
Input: "Jane Doe leads the payments team at Acme Corp in Berlin."
Output:
{
  "nodes": [
    {"type":"person","label":"Jane Doe"},
    {"type":"organization","label":"Acme Corp"},
    {"type":"location","label":"Berlin"}
  ],
  "edges": [
    {"sourceNodeLabel":"Jane Doe","targetNodeLabel":"Acme Corp","type":"works_for","weight":0.9},
    {"sourceNodeLabel":"Acme Corp","targetNodeLabel":"Berlin","type":"located_in","weight":0.7}
  ]
}`

const entityPromptTemplate = `Identify the named entities in the given text and return them as JSON.

Output ONLY a JSON object of the form {"entities": [{"text": "...", "type": "...", "start": 0, "end": 0}]}.
Do not include any other text.

Rules:
- Type must be one of: %s.
- Text is the entity exactly as written.
- Start and end are character offsets of the first mention, end exclusive.
- If there are no entities, return {"entities": []}.`

func buildGraphPrompt(schema ai.GraphSchema) string {
	schema = schema.OrDefault()
	return fmt.Sprintf(graphPromptTemplate,
		schema.JSON,
		strings.Join(schema.NodeTypes, ", "),
		strings.Join(schema.EdgeTypes, ", "))
}

func buildEntityPrompt() string {
	return fmt.Sprintf(entityPromptTemplate, joinTypes(core.NodeTypes))
}

func joinTypes[T ~string](types []T) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
