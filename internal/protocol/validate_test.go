package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

func clientMessage(t *testing.T, msgType string, payload map[string]interface{}) []byte {
	t.Helper()
	msg := map[string]interface{}{
		"type":      msgType,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeError, ErrorPayload{Code: "X", Message: "boom"})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	if msg.Type != TypeError {
		t.Errorf("expected type %s, got %s", TypeError, msg.Type)
	}

	if msg.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestEncode_LogLine(t *testing.T) {
	data, err := Encode(events.Status("🖼️", "Screenshot gallery updated with 2 images."))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != events.TypeLogMessage {
		t.Errorf("expected type %s, got %s", events.TypeLogMessage, msg.Type)
	}

	var p events.LogMessagePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Type != "status" {
		t.Errorf("expected status log, got %s", p.Type)
	}
	if p.Data != "🖼️ Screenshot gallery updated with 2 images." {
		t.Errorf("unexpected data %q", p.Data)
	}
}

func TestValidateClientMessage_ValidRegister(t *testing.T) {
	data := clientMessage(t, TypeRegisterTab, map[string]interface{}{"tabId": "tab-1"})

	result, err := ValidateClientMessage(data)
	if err != nil {
		t.Fatalf("expected valid message, got error: %v", err)
	}
	if result.Type != TypeRegisterTab {
		t.Errorf("expected type %s, got %s", TypeRegisterTab, result.Type)
	}
}

func TestValidateClientMessage_PingMissingTabID(t *testing.T) {
	data := clientMessage(t, TypeDashboardPing, map[string]interface{}{})

	if _, err := ValidateClientMessage(data); err == nil {
		t.Fatal("expected error for missing tabId")
	}
}

func TestValidateClientMessage_InvalidJSON(t *testing.T) {
	_, err := ValidateClientMessage([]byte("not json"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateClientMessage_MissingType(t *testing.T) {
	data := []byte(`{"payload":{}}`)

	_, err := ValidateClientMessage(data)
	if err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestValidateClientMessage_UnknownType(t *testing.T) {
	data := clientMessage(t, "unknown.action", map[string]interface{}{})

	_, err := ValidateClientMessage(data)
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestValidateClientMessage_MissingPayload(t *testing.T) {
	data := []byte(`{"type":"dashboard_ping","timestamp":"2024-01-01T00:00:00.000Z"}`)

	_, err := ValidateClientMessage(data)
	if err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestValidateClientMessage_AgentControlUnknownActionAccepted(t *testing.T) {
	data := clientMessage(t, TypeAgentControl, map[string]interface{}{"action": "dance"})

	if _, err := ValidateClientMessage(data); err != nil {
		t.Fatalf("expected unknown action to pass validation, got: %v", err)
	}
}

func TestValidateClientMessage_BrowserInput(t *testing.T) {
	data := clientMessage(t, TypeBrowserInput, map[string]interface{}{
		"type":    "click",
		"details": map[string]interface{}{"x": 10, "y": 20},
	})

	msg, err := ValidateClientMessage(data)
	if err != nil {
		t.Fatalf("expected valid message, got error: %v", err)
	}

	var p BrowserInputPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Type != "click" {
		t.Errorf("expected click, got %s", p.Type)
	}
	if len(p.Details) == 0 {
		t.Error("expected details to be preserved")
	}
}

func TestValidateClientMessage_BrowserInputMissingType(t *testing.T) {
	data := clientMessage(t, TypeBrowserInput, map[string]interface{}{"details": map[string]interface{}{}})

	if _, err := ValidateClientMessage(data); err == nil {
		t.Fatal("expected error for missing input type")
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage(ErrNoActiveSession, "no active automation session")
	if err != nil {
		t.Fatalf("NewErrorMessage failed: %v", err)
	}
	if msg.Type != TypeError {
		t.Errorf("expected type %s, got %s", TypeError, msg.Type)
	}

	var p ErrorPayload
	json.Unmarshal(msg.Payload, &p)
	if p.Code != ErrNoActiveSession {
		t.Errorf("expected code %s, got %s", ErrNoActiveSession, p.Code)
	}
}
