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


// Package progress publishes pipeline progress events.
//
// Events are JSON messages on a watermill topic. By default the transport is
// an in-process gochannel; any watermill Publisher/Subscriber pair can be
// supplied instead. Delivery is at-least-once. The Notifier never lets
// progress.current go backwards for a document and stage, and subscribers
// returned by Subscribe drop stale and duplicate deliveries, so observers see
// a non-decreasing stream.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/kbflow/core"
)

// Progress is the unit count of a stage.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewProgress builds a Progress, computing the percentage. A stage with no
// units is reported as complete.
func NewProgress(current, total int) Progress {
	pct := 100.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	return Progress{Current: current, Total: total, Percentage: pct}
}

// Counts is the number of graph rows created by a stage.
type Counts struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Event is one progress notification.
type Event struct {
	DocumentId    string              `json:"documentId"`
	DatasetId     string              `json:"datasetId"`
	Stage         core.Stage          `json:"stage"`
	Status        core.DocumentStatus `json:"status"`
	Progress      Progress            `json:"progress"`
	CountsCreated Counts              `json:"countsCreated"`
	Error         string              `json:"error,omitempty"`

	// Seq orders events from one Notifier. Assigned on publish.
	Seq       uint64    `json:"seq"`
	EmittedAt time.Time `json:"emittedAt"`
}

// Key is the idempotency key of the event: document, stage and current count.
func (e Event) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.DocumentId, e.Stage, e.Progress.Current)
}

func streamKey(documentID string, stage core.Stage) string {
	return documentID + "|" + string(stage)
}

// sameState reports whether two events carry the same observable state.
func sameState(a, b Event) bool {
	return a.Status == b.Status &&
		a.Progress.Current == b.Progress.Current &&
		a.Progress.Total == b.Progress.Total &&
		a.CountsCreated == b.CountsCreated &&
		a.Error == b.Error
}

// String renders the event for logs and the console.
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %d/%d (%.1f%%)",
		e.Stage, e.DocumentId, e.Status, e.Progress.Current, e.Progress.Total, e.Progress.Percentage)
	if e.CountsCreated.Nodes > 0 || e.CountsCreated.Edges > 0 {
		fmt.Fprintf(&b, " nodes=%d edges=%d", e.CountsCreated.Nodes, e.CountsCreated.Edges)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}
