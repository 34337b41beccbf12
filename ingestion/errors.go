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


package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/kbflow/core"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrSegmentRepositoryRequired is returned when a segment repository is not provided.
	ErrSegmentRepositoryRequired = errors.New("segment repository required")

	// ErrGraphRepositoryRequired is returned when a graph repository is not provided.
	ErrGraphRepositoryRequired = errors.New("graph repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrStageNotRegistered is returned when a document needs a stage the registry lacks.
	ErrStageNotRegistered = errors.New("stage not registered")

	// ErrDuplicateStage is returned when a stage name is registered twice.
	ErrDuplicateStage = errors.New("stage already registered")

	// ErrDocumentActive is returned when a document is already being processed.
	ErrDocumentActive = errors.New("document is already being processed")

	// ErrPipelineClosed is returned when using a closed pipeline.
	ErrPipelineClosed = errors.New("pipeline is closed")
)

// UnitError reports a segment that failed a stage after its retries.
type UnitError struct {
	Stage     core.Stage
	SegmentId core.ID
	Position  int
	Attempts  int
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s failed for segment %d (position %d) after %d attempt(s): %v",
		e.Stage, e.SegmentId, e.Position, e.Attempts, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
