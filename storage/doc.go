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


// Package storage provides the storage abstraction layer for kbflow.
//
// This package defines repository interfaces that decouple the pipeline from
// the storage engine. The pipeline needs three stores:
//
//   - DocumentRepository: documents and their processing checkpoints
//   - SegmentRepository: ordered segments with per-segment artifacts
//   - GraphRepository: deduplicated graph nodes and edges per dataset
//
// # Mutation Pattern
//
// Documents and segments are changed through read-modify-write callbacks:
//
//	doc, err := repo.UpdateDocument(ctx, id, func(doc *core.Document) error {
//	    doc.Metadata.Embedding.SegmentsProcessed++
//	    return nil
//	})
//
// The callback may run more than once when a concurrent writer touched the
// same record, so it must only depend on the record it is given.
//
// # Upserts
//
// Graph writes are upserts keyed on natural keys. A concurrent write to the
// same key is merged into the existing row and is never reported as an error.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
