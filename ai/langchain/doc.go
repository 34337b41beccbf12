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


// Package langchain provides ai service implementations built on langchaingo.
//
// One package serves every supported backend: the openai client is used for
// OpenAI-compatible servers (including local ones such as LocalAI and vLLM),
// the ollama client for native ollama, and the anthropic client for Claude
// models. The backend only changes which client is constructed and which
// response shape the output is decoded with.
//
// # Thread Safety
//
// All implementations are safe for concurrent use. The pipeline calls them
// from its worker pool.
//
// # Error Handling
//
// Client errors are mapped through ai.ClassifyError so callers only see
// the typed failures defined in package ai. Malformed model output is
// reported as ai.ErrMalformedResponse and never retried here; retry policy
// belongs to the caller.
package langchain
