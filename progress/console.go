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


package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleReporter renders events as a single updating progress line per
// stage, finishing the line when the stage leaves its active status.
type ConsoleReporter struct {
	writer io.Writer

	mu      sync.Mutex
	stage   string
	started time.Time
	open    bool
}

// NewConsoleReporter creates a reporter writing to w (typically os.Stderr).
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{writer: w}
}

// Report renders one event.
func (r *ConsoleReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := streamKey(e.DocumentId, e.Stage)
	if key != r.stage {
		if r.open {
			fmt.Fprintln(r.writer)
		}
		r.stage = key
		r.started = time.Now()
	}

	elapsed := time.Since(r.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(e.Progress.Current) / elapsed
	}
	fmt.Fprintf(r.writer, "\r%s - %.1f segments/s", e, rate)
	r.open = true

	if e.Status != e.Stage.ActiveStatus() {
		fmt.Fprintln(r.writer)
		r.open = false
	}
}

// Run reports every event from events until the channel closes or ctx is
// done. It returns the last event seen with a terminal or recoverable status.
func (r *ConsoleReporter) Run(ctx context.Context, events <-chan Event) (Event, bool) {
	var (
		final Event
		found bool
	)
	for {
		select {
		case <-ctx.Done():
			return final, found
		case e, ok := <-events:
			if !ok {
				return final, found
			}
			r.Report(e)
			if e.Status.IsTerminal() || e.Status.IsRecoverable() {
				final, found = e, true
			}
		}
	}
}
