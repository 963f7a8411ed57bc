package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Holder tracks the single automation session that may be attached at a
// time. Collaborators resolve it lazily through Current, so attaching or
// detaching never requires rewiring the transport.
type Holder struct {
	mu         sync.RWMutex
	id         string
	loop       Loop
	handle     Handle
	attachedAt time.Time
	detached   bool
	onAttach   []func(id string)
	logger     *slog.Logger
}

// NewHolder creates an empty holder.
func NewHolder(logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{logger: logger}
}

// OnAttach registers a hook run after every Attach.
func (h *Holder) OnAttach(fn func(id string)) {
	h.mu.Lock()
	h.onAttach = append(h.onAttach, fn)
	h.mu.Unlock()
}

// Attach installs loop and handle as the current session, replacing any
// previous one, and returns the new session id.
func (h *Holder) Attach(loop Loop, handle Handle) string {
	id := uuid.New().String()

	h.mu.Lock()
	prev := h.id
	h.id = id
	h.loop = loop
	h.handle = handle
	h.attachedAt = time.Now().UTC()
	h.detached = false
	hooks := make([]func(string), len(h.onAttach))
	copy(hooks, h.onAttach)
	h.mu.Unlock()

	if prev != "" {
		h.logger.Info("automation session replaced", "previous", prev, "session", id)
	} else {
		h.logger.Info("automation session attached", "session", id)
	}
	for _, fn := range hooks {
		fn(id)
	}
	return id
}

// Detach clears the current session if its id matches. Returns false if a
// different session (or none) is attached.
func (h *Holder) Detach(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.id == "" || h.id != id {
		return false
	}
	h.id = ""
	h.loop = nil
	h.handle = nil
	h.attachedAt = time.Time{}
	h.detached = true
	h.logger.Info("automation session detached", "session", id)
	return true
}

// Current returns the attached loop and handle.
func (h *Holder) Current() (Loop, Handle) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loop, h.handle
}

// Info returns a snapshot of the attached session.
func (h *Holder) Info() Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch {
	case h.id != "":
		return Info{ID: h.id, State: StateActive, AttachedAt: h.attachedAt}
	case h.detached:
		return Info{State: StateDetached}
	default:
		return Info{State: StateIdle}
	}
}
