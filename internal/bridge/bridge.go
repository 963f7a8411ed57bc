package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
)

var (
	ErrNoActiveSession = errors.New("no active browser session for input handling")
	ErrScheduleFailed  = errors.New("could not schedule browser input")
)

// highFrequency input kinds arrive many times a second and are forwarded
// without status lines.
var highFrequency = map[string]bool{
	"mousemove": true,
	"scroll":    true,
	"wheel":     true,
}

// Stats counts forwarded inputs.
type Stats struct {
	Scheduled uint64 `json:"scheduled"`
	Rejected  uint64 `json:"rejected"`
}

// Bridge hands dashboard input to the automation loop without waiting for
// it to be processed.
type Bridge struct {
	provider session.Provider
	pub      events.Publisher
	logger   *slog.Logger

	scheduled atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a bridge resolving the session through provider.
func New(provider session.Provider, pub events.Publisher, logger *slog.Logger) *Bridge {
	if pub == nil {
		pub = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{provider: provider, pub: pub, logger: logger}
}

// ForwardInput schedules one input on the automation loop. It returns as
// soon as the input is queued.
func (b *Bridge) ForwardInput(kind string, details json.RawMessage) error {
	quiet := highFrequency[kind]

	var loop session.Loop
	var handle session.Handle
	if b.provider != nil {
		loop, handle = b.provider.Current()
	}
	if loop == nil || handle == nil {
		b.rejected.Add(1)
		b.pub.Publish(events.Status("❌", "Input error: No active browser session for input handling"))
		return ErrNoActiveSession
	}

	if !quiet {
		b.pub.Publish(events.Status("🖱️", fmt.Sprintf("Received browser input: %s", kind)))
	}

	in := session.Input{Kind: kind, Details: details}
	err := loop.Submit(func(ctx context.Context) error {
		if err := handle.HandleInput(ctx, in); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		b.rejected.Add(1)
		b.logger.Warn("schedule browser input", "kind", kind, "err", err)
		b.pub.Publish(events.Status("❌", fmt.Sprintf("Input error: Error scheduling browser input handler: %v", err)))
		return fmt.Errorf("%w: %w", ErrScheduleFailed, err)
	}

	b.scheduled.Add(1)
	if !quiet {
		b.pub.Publish(events.Status("✅", fmt.Sprintf("Input %s scheduled for processing", kind)))
	}
	return nil
}

// Stats returns the forwarding counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Scheduled: b.scheduled.Load(),
		Rejected:  b.rejected.Load(),
	}
}
