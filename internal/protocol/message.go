package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// FromEvent wraps a dashboard event in the wire envelope.
func FromEvent(e events.Event) (*Message, error) {
	return NewMessage(e.WireType(), e.WirePayload())
}

// Encode marshals a dashboard event straight to wire bytes.
func Encode(e events.Event) ([]byte, error) {
	msg, err := FromEvent(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Server → Client message types not covered by events.
const (
	TypeError = "error"
)

// Client → Server message types.
const (
	TypeRegisterTab   = "register_dashboard_tab"
	TypeDashboardPing = "dashboard_ping"
	TypeDashboardShow = "dashboard_visible"
	TypeAgentControl  = "agent_control"
	TypeBrowserInput  = "browser_input"
)

// Error codes.
const (
	ErrInvalidMessage  = "INVALID_MESSAGE"
	ErrNoActiveSession = "NO_ACTIVE_SESSION"
	ErrScheduleFailed  = "SCHEDULE_FAILED"
	ErrControlRejected = "CONTROL_REJECTED"
	ErrUnknownTab      = "UNKNOWN_TAB"
)

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

type TabPayload struct {
	TabID string `json:"tabId"`
}

type AgentControlPayload struct {
	Action string `json:"action"`
}

type BrowserInputPayload struct {
	Type    string          `json:"type"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Read endpoint bodies.

type URLTaskResponse struct {
	URL  string `json:"url"`
	Task string `json:"task"`
}

type ScreenshotResponse struct {
	Screenshot string `json:"screenshot"`
}
