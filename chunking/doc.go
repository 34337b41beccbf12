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


// Package chunking splits document content into ordered segments.
//
// Splitting is deterministic: the same content, content type and
// configuration always yield the same boundaries. Markdown is flattened to
// plain block text with goldmark before splitting, so markup never leaks
// into segment text and never shifts boundaries between runs.
package chunking
