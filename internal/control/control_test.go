package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events/eventstest"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
)

type fakeHandle struct {
	calls []string
	err   error
}

func (h *fakeHandle) record(call string) error {
	h.calls = append(h.calls, call)
	return h.err
}

func (h *fakeHandle) Pause() error  { return h.record("pause") }
func (h *fakeHandle) Resume() error { return h.record("resume") }
func (h *fakeHandle) Stop() error   { return h.record("stop") }

func (h *fakeHandle) HandleInput(context.Context, session.Input) error { return nil }

func newFacade(handle session.Handle) (*Facade, *eventstest.Recorder) {
	holder := session.NewHolder(nil)
	if handle != nil {
		holder.Attach(session.NewTaskLoop(nil), handle)
	}
	rec := &eventstest.Recorder{}
	return New(holder, rec, nil), rec
}

func agentStates(rec *eventstest.Recorder) []events.AgentState {
	var out []events.AgentState
	for _, e := range rec.Events() {
		if s, ok := e.(events.AgentState); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestParseAction(t *testing.T) {
	testCases := []struct {
		token string
		want  Action
	}{
		{"pause", ActionPause},
		{"resume", ActionResume},
		{"stop", ActionStop},
		{" Pause ", ActionUnknown},
		{"STOP", ActionUnknown},
		{"jump", ActionUnknown},
		{"", ActionUnknown},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseAction(tc.token), "token %q", tc.token)
	}
	assert.Equal(t, "pause", ActionPause.String())
	assert.Equal(t, "unknown", ActionUnknown.String())
}

func TestFacade_PauseResumeStop(t *testing.T) {
	handle := &fakeHandle{}
	f, rec := newFacade(handle)
	require.Equal(t, StateRunning, f.State())

	require.NoError(t, f.Apply(ActionPause))
	assert.Equal(t, StatePaused, f.State())

	require.NoError(t, f.Apply(ActionResume))
	assert.Equal(t, StateRunning, f.State())

	require.NoError(t, f.Apply(ActionStop))
	assert.Equal(t, StateStopped, f.State())

	assert.Equal(t, []string{"pause", "resume", "stop"}, handle.calls)
	assert.Equal(t, []events.AgentState{
		{Paused: true},
		{},
		{Stopped: true},
	}, agentStates(rec))
}

func TestFacade_LogsControlFirst(t *testing.T) {
	f, rec := newFacade(&fakeHandle{})
	require.NoError(t, f.ApplyToken("pause"))

	lines := rec.LogLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "🤖 Agent control: pause", lines[0].Text())
	assert.Equal(t, "⏸️ Agent paused", lines[1].Text())
}

func TestFacade_StopThenResume(t *testing.T) {
	handle := &fakeHandle{}
	f, rec := newFacade(handle)

	require.NoError(t, f.Apply(ActionStop))
	err := f.Apply(ActionResume)

	assert.ErrorIs(t, err, ErrAlreadyStopped)
	assert.Equal(t, StateStopped, f.State())
	assert.Equal(t, []string{"stop"}, handle.calls)
	assert.Len(t, agentStates(rec), 1)
}

func TestFacade_NoActiveAgent(t *testing.T) {
	f, rec := newFacade(nil)

	err := f.Apply(ActionPause)
	assert.ErrorIs(t, err, ErrNoActiveAgent)
	assert.Equal(t, StateRunning, f.State())

	lines := rec.LogLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "❌ Agent control error: No active agent instance", lines[1].Text())
	assert.Empty(t, agentStates(rec))
}

func TestFacade_UnknownAction(t *testing.T) {
	handle := &fakeHandle{}
	f, rec := newFacade(handle)

	err := f.ApplyToken("jump")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Empty(t, handle.calls)

	lines := rec.LogLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "🤖 Agent control: jump", lines[0].Text())
	assert.Equal(t, "❓", lines[1].Emoji)
}

func TestFacade_InvalidTransitions(t *testing.T) {
	handle := &fakeHandle{}
	f, _ := newFacade(handle)

	assert.ErrorIs(t, f.Apply(ActionResume), ErrInvalidTransition)
	require.NoError(t, f.Apply(ActionPause))
	assert.ErrorIs(t, f.Apply(ActionPause), ErrInvalidTransition)
	assert.Equal(t, StatePaused, f.State())
	assert.Equal(t, []string{"pause"}, handle.calls)
}

func TestFacade_StopWhilePaused(t *testing.T) {
	f, rec := newFacade(&fakeHandle{})
	require.NoError(t, f.Apply(ActionPause))
	require.NoError(t, f.Apply(ActionStop))

	states := agentStates(rec)
	require.Len(t, states, 2)
	assert.Equal(t, events.AgentState{Stopped: true}, states[1])
}

func TestFacade_HandleErrorKeepsState(t *testing.T) {
	handle := &fakeHandle{err: errors.New("browser gone")}
	f, rec := newFacade(handle)

	err := f.Apply(ActionPause)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser gone")
	assert.Equal(t, StateRunning, f.State())
	assert.Empty(t, agentStates(rec))
}

func TestFacade_Reset(t *testing.T) {
	f, _ := newFacade(&fakeHandle{})
	require.NoError(t, f.Apply(ActionStop))
	f.Reset()
	assert.Equal(t, StateRunning, f.State())
	assert.NoError(t, f.Apply(ActionPause))
}

type blockingHandle struct {
	fakeHandle
	entered chan struct{}
	release chan struct{}
}

func (h *blockingHandle) Stop() error {
	close(h.entered)
	<-h.release
	return nil
}

func TestFacade_StateReadableWhileHandleWorks(t *testing.T) {
	handle := &blockingHandle{entered: make(chan struct{}), release: make(chan struct{})}
	f, rec := newFacade(handle)

	done := make(chan error, 1)
	go func() { done <- f.ApplyToken("stop") }()
	<-handle.entered

	state := make(chan State, 1)
	go func() { state <- f.State() }()
	select {
	case got := <-state:
		assert.Equal(t, StateRunning, got)
	case <-time.After(time.Second):
		t.Fatal("State blocked behind the handle")
	}

	// A second action is turned away while the first is pending.
	assert.ErrorIs(t, f.Apply(ActionPause), ErrInProgress)
	assert.Empty(t, handle.calls)

	close(handle.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, f.State())
	assert.Equal(t, []events.AgentState{{Stopped: true}}, agentStates(rec))
}

func TestFacade_ResetDuringPendingAction(t *testing.T) {
	handle := &blockingHandle{entered: make(chan struct{}), release: make(chan struct{})}
	f, rec := newFacade(handle)

	done := make(chan error, 1)
	go func() { done <- f.Apply(ActionStop) }()
	<-handle.entered

	f.Reset()
	close(handle.release)
	require.NoError(t, <-done)

	assert.Equal(t, StateRunning, f.State())
	assert.Empty(t, agentStates(rec))
}
