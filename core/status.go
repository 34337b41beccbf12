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

import "slices"

// DocumentStatus is a document's position in the processing state machine.
type DocumentStatus string

const (
	StatusWaiting         DocumentStatus = "waiting"
	StatusChunking        DocumentStatus = "chunking"
	StatusChunked         DocumentStatus = "chunked"
	StatusEmbedding       DocumentStatus = "embedding"
	StatusEmbedded        DocumentStatus = "embedded"
	StatusNER             DocumentStatus = "ner"
	StatusGraphExtraction DocumentStatus = "graph_extraction_processing"
	StatusCompleted       DocumentStatus = "completed"
	StatusError           DocumentStatus = "error"
	StatusPaused          DocumentStatus = "paused"
	StatusCancelled       DocumentStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsRecoverable reports whether the document can be resumed.
func (s DocumentStatus) IsRecoverable() bool {
	return s == StatusError || s == StatusPaused
}

// Stage names a processing stage.
type Stage string

const (
	StageChunking        Stage = "chunking"
	StageEmbedding       Stage = "embedding"
	StageNER             Stage = "ner"
	StageGraphExtraction Stage = "graph_extraction"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageChunking, StageEmbedding, StageNER, StageGraphExtraction}

// ActiveStatus returns the status a document holds while the stage runs.
func (s Stage) ActiveStatus() DocumentStatus {
	switch s {
	case StageChunking:
		return StatusChunking
	case StageEmbedding:
		return StatusEmbedding
	case StageNER:
		return StatusNER
	case StageGraphExtraction:
		return StatusGraphExtraction
	}
	return ""
}

// DoneStatus returns the sub-state committed when the stage finishes. Stages
// without their own sub-state hand over directly to the next stage.
func (s Stage) DoneStatus() (DocumentStatus, bool) {
	switch s {
	case StageChunking:
		return StatusChunked, true
	case StageEmbedding:
		return StatusEmbedded, true
	}
	return "", false
}

// StageOf returns the stage that is running while a document holds status.
func StageOf(status DocumentStatus) (Stage, bool) {
	for _, s := range Stages {
		if s.ActiveStatus() == status {
			return s, true
		}
	}
	return "", false
}

// UnitStatus tracks one segment through one stage.
type UnitStatus string

const (
	UnitWaiting    UnitStatus = "waiting"
	UnitProcessing UnitStatus = "processing"
	UnitCompleted  UnitStatus = "completed"
	UnitError      UnitStatus = "error"
)

// Signal is a cooperative control request observed between units.
type Signal int32

const (
	SignalNone Signal = iota
	SignalCancel
	SignalPause
)

// Status returns the document status a signal ends in.
func (s Signal) Status() DocumentStatus {
	switch s {
	case SignalCancel:
		return StatusCancelled
	case SignalPause:
		return StatusPaused
	}
	return ""
}

var stageEntries = []DocumentStatus{StatusChunking, StatusEmbedding, StatusNER, StatusGraphExtraction}

// transitions lists the forward edges of the state machine. Interrupt edges
// (error, paused, cancelled) are handled in CanTransition.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusWaiting:         {StatusChunking},
	StatusChunking:        {StatusChunking, StatusChunked},
	StatusChunked:         {StatusEmbedding},
	StatusEmbedding:       {StatusEmbedding, StatusEmbedded},
	StatusEmbedded:        {StatusNER, StatusGraphExtraction, StatusCompleted},
	StatusNER:             {StatusNER, StatusGraphExtraction, StatusCompleted},
	StatusGraphExtraction: {StatusGraphExtraction, StatusCompleted},
	StatusError:           stageEntries,
	StatusPaused:          stageEntries,
}

// CanTransition reports whether a document may move from one status to another.
// It is the single source of truth for the document state machine.
func CanTransition(from, to DocumentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusError, StatusPaused:
		return !from.IsRecoverable()
	}
	return slices.Contains(transitions[from], to)
}
