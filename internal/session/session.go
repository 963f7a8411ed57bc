package session

import (
	"context"
	"encoding/json"
	"time"
)

// State represents the lifecycle state of the attached automation session.
type State string

const (
	StateIdle     State = "idle"
	StateActive   State = "active"
	StateDetached State = "detached"
)

// Input is one user interaction forwarded from a dashboard to the browser.
type Input struct {
	Kind    string          `json:"type"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Handle is the control surface of a running automation session.
// HandleInput is only ever invoked from the session's Loop.
type Handle interface {
	Pause() error
	Resume() error
	Stop() error
	HandleInput(ctx context.Context, in Input) error
}

// Task is a unit of work executed on the automation loop.
type Task func(ctx context.Context) error

// Loop accepts work from other goroutines for execution on the automation
// loop. Submit never waits for the task to run.
type Loop interface {
	Submit(task Task) error
}

// Provider resolves the currently attached loop and handle. Either may be
// nil.
type Provider interface {
	Current() (Loop, Handle)
}

// Info describes the attached session.
type Info struct {
	ID         string    `json:"id,omitempty"`
	State      State     `json:"state"`
	AttachedAt time.Time `json:"attachedAt,omitzero"`
}
