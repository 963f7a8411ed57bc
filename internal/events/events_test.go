package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLine_Payload(t *testing.T) {
	line := Status("✅", "Connected")
	assert.Equal(t, TypeLogMessage, line.WireType())

	data, err := json.Marshal(line.WirePayload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"✅ Connected","type":"status"}`, string(data))
}

func TestLogLine_Defaults(t *testing.T) {
	line := LogLine{Message: "thinking"}
	p, ok := line.WirePayload().(LogMessagePayload)
	require.True(t, ok)
	assert.Equal(t, "➡️ thinking", p.Data)
	assert.Equal(t, "agent", p.Type)
}

func TestAgentState_Payload(t *testing.T) {
	data, err := json.Marshal(AgentState{Paused: true}.WirePayload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"paused":true,"stopped":false}}`, string(data))
}

func TestEmptyPayloads(t *testing.T) {
	for _, e := range []Event{GalleryUpdated{}, RefreshSignal{}} {
		data, err := json.Marshal(e.WirePayload())
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data), e.WireType())
	}
}
