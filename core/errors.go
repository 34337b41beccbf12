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

import "errors"

// Pipeline error taxonomy. Callers classify with errors.Is.
var (
	// ErrTransientExternal marks a failed external call that may succeed on retry
	// (timeout, rate limit, 5xx).
	ErrTransientExternal = errors.New("transient external failure")

	// ErrMalformedResponse marks an external response that could not be decoded or
	// failed schema validation. It is never retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrValidation marks bad configuration or unprocessable content. It is fatal
	// for the whole document.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks a concurrent write on the same natural key. Stores absorb it
	// by merging; it should never reach a document's error.
	ErrConflict = errors.New("write conflict")

	// ErrInvalidState is returned when an operation is not allowed in the
	// document's current status.
	ErrInvalidState = errors.New("invalid document state")

	// ErrInvalidTransition is returned when a status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidSegment indicates a Segment failed validation.
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrInvalidNode indicates a GraphNode failed validation.
	ErrInvalidNode = errors.New("invalid graph node")

	// ErrInvalidEdge indicates a GraphEdge failed validation.
	ErrInvalidEdge = errors.New("invalid graph edge")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyDataset indicates the DatasetId field is empty.
	ErrEmptyDataset = errors.New("dataset id cannot be empty")

	// ErrEmptyLabel indicates a node label is empty after trimming.
	ErrEmptyLabel = errors.New("label cannot be empty")

	// ErrInvalidContentType indicates an unsupported content type.
	ErrInvalidContentType = errors.New("unsupported content type")

	// ErrInvalidWeight indicates an edge weight outside [0, 1].
	ErrInvalidWeight = errors.New("edge weight must be between 0 and 1")
)
