// Package eventstest provides a Publisher that records events for tests.
package eventstest

import (
	"sync"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

// Recorder is an events.Publisher that keeps every event it receives.
// Tests use it in place of the hub.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// LogLines returns only the log lines, in publish order.
func (r *Recorder) LogLines() []events.LogLine {
	var lines []events.LogLine
	for _, e := range r.Events() {
		if l, ok := e.(events.LogLine); ok {
			lines = append(lines, l)
		}
	}
	return lines
}

// Count returns how many events of the given wire type were published.
func (r *Recorder) Count(wireType string) int {
	n := 0
	for _, e := range r.Events() {
		if e.WireType() == wireType {
			n++
		}
	}
	return n
}
