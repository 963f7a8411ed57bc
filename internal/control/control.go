package control

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
)

var (
	ErrUnknownAction     = errors.New("unknown agent control action")
	ErrAlreadyStopped    = errors.New("agent already stopped")
	ErrNoActiveAgent     = errors.New("no active agent instance")
	ErrInvalidTransition = errors.New("invalid agent state transition")
	ErrInProgress        = errors.New("agent control action in progress")
)

// Action is a control request from a dashboard.
type Action int

const (
	ActionUnknown Action = iota
	ActionPause
	ActionResume
	ActionStop
)

// ParseAction maps a wire token to an Action. Tokens match exactly;
// anything else yields ActionUnknown.
func ParseAction(token string) Action {
	switch token {
	case "pause":
		return ActionPause
	case "resume":
		return ActionResume
	case "stop":
		return ActionStop
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case ActionPause:
		return "pause"
	case ActionResume:
		return "resume"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// State is the agent's control state. Stopped is terminal until Reset.
type State string

const (
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Facade applies dashboard control actions to the attached automation
// session and broadcasts the resulting state.
type Facade struct {
	mu       sync.Mutex
	state    State
	pending  bool
	gen      uint64
	provider session.Provider
	pub      events.Publisher
	logger   *slog.Logger
}

// New creates a facade in the running state.
func New(provider session.Provider, pub events.Publisher, logger *slog.Logger) *Facade {
	if pub == nil {
		pub = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		state:    StateRunning,
		provider: provider,
		pub:      pub,
		logger:   logger,
	}
}

// State returns the current control state.
func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reset returns the facade to the running state.
func (f *Facade) Reset() {
	f.mu.Lock()
	f.state = StateRunning
	f.gen++
	f.mu.Unlock()
}

// ApplyToken parses token and applies it. The raw token is what gets
// logged.
func (f *Facade) ApplyToken(token string) error {
	return f.apply(ParseAction(token), token)
}

// Apply performs action against the attached session.
func (f *Facade) Apply(action Action) error {
	return f.apply(action, action.String())
}

func (f *Facade) apply(action Action, token string) error {
	f.pub.Publish(events.Status("🤖", fmt.Sprintf("Agent control: %s", token)))

	if action == ActionUnknown {
		f.reject("❓", fmt.Sprintf("Unknown agent control action: %s", token))
		return fmt.Errorf("%w: %q", ErrUnknownAction, token)
	}

	call, next, emoji, text, gen, err := f.begin(action)
	if err != nil {
		return err
	}

	// Called without f.mu; pending holds off other actions until it returns.
	callErr := call()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	if gen != f.gen {
		// Reset for a new session while the call ran.
		return callErr
	}

	if callErr != nil {
		f.logger.Warn("agent control failed", "action", action.String(), "err", callErr)
		f.reject("❌", fmt.Sprintf("Error controlling agent: %v", callErr))
		return fmt.Errorf("%s agent: %w", action, callErr)
	}

	f.state = next
	f.pub.Publish(events.Status(emoji, text))
	f.pub.Publish(events.AgentState{
		Paused:  next == StatePaused,
		Stopped: next == StateStopped,
	})
	return nil
}

// begin validates action against the current state and marks it pending.
func (f *Facade) begin(action Action) (call func() error, next State, emoji, text string, gen uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateStopped {
		f.reject("❌", "Agent already stopped")
		return nil, "", "", "", 0, ErrAlreadyStopped
	}
	if f.pending {
		f.reject("⚠️", "Another control action is still in progress")
		return nil, "", "", "", 0, ErrInProgress
	}

	var handle session.Handle
	if f.provider != nil {
		_, handle = f.provider.Current()
	}
	if handle == nil {
		f.reject("❌", "No active agent instance")
		return nil, "", "", "", 0, ErrNoActiveAgent
	}

	switch action {
	case ActionPause:
		if f.state == StatePaused {
			f.reject("⚠️", "Agent already paused")
			return nil, "", "", "", 0, fmt.Errorf("%w: pause while paused", ErrInvalidTransition)
		}
		call, next, emoji, text = handle.Pause, StatePaused, "⏸️", "Agent paused"
	case ActionResume:
		if f.state == StateRunning {
			f.reject("⚠️", "Agent is not paused")
			return nil, "", "", "", 0, fmt.Errorf("%w: resume while running", ErrInvalidTransition)
		}
		call, next, emoji, text = handle.Resume, StateRunning, "▶️", "Agent resumed"
	case ActionStop:
		call, next, emoji, text = handle.Stop, StateStopped, "⏹️", "Agent stopped"
	}
	f.pending = true
	return call, next, emoji, text, f.gen, nil
}

func (f *Facade) reject(emoji, reason string) {
	f.pub.Publish(events.Status(emoji, "Agent control error: "+reason))
}
