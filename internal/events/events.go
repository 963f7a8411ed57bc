package events

// LogType is the category a dashboard log line is filed under.
type LogType string

const (
	LogAgent   LogType = "agent"
	LogConsole LogType = "console"
	LogNetwork LogType = "network"
	LogStatus  LogType = "status"
)

// Outbound wire event names.
const (
	TypeLogMessage     = "log_message"
	TypeBrowserUpdate  = "browser_update"
	TypeGalleryUpdated = "gallery_updated"
	TypeAgentState     = "agent_state"
	TypeRefresh        = "refresh_dashboard"
)

// Event is an immutable message broadcast to every dashboard observer.
// The set of implementations is closed: LogLine, FrameUpdate,
// GalleryUpdated, AgentState and RefreshSignal.
type Event interface {
	// WireType is the outbound event name observers dispatch on.
	WireType() string
	// WirePayload is the JSON-encodable body sent with the event.
	WirePayload() any

	sealed()
}

// LogLine is a single line in the dashboard log pane.
type LogLine struct {
	Message string
	Emoji   string
	Type    LogType
}

// Text renders the line the way the dashboard displays it.
func (l LogLine) Text() string {
	emoji := l.Emoji
	if emoji == "" {
		emoji = "➡️"
	}
	return emoji + " " + l.Message
}

func (l LogLine) WireType() string { return TypeLogMessage }

func (l LogLine) WirePayload() any {
	t := l.Type
	if t == "" {
		t = LogAgent
	}
	return LogMessagePayload{Data: l.Text(), Type: string(t)}
}

// FrameUpdate carries one live screencast frame. Frames are not kept in
// the gallery.
type FrameUpdate struct {
	Image string
}

func (FrameUpdate) WireType() string { return TypeBrowserUpdate }

func (f FrameUpdate) WirePayload() any { return DataPayload{Data: f.Image} }

// GalleryUpdated tells observers to re-fetch the screenshot list.
type GalleryUpdated struct{}

func (GalleryUpdated) WireType() string { return TypeGalleryUpdated }

func (GalleryUpdated) WirePayload() any { return struct{}{} }

// AgentState reports the control state of the automation agent.
type AgentState struct {
	Paused  bool
	Stopped bool
}

func (AgentState) WireType() string { return TypeAgentState }

func (a AgentState) WirePayload() any {
	return AgentStatePayload{State: AgentStateFlags{Paused: a.Paused, Stopped: a.Stopped}}
}

// RefreshSignal asks every open dashboard tab to reload itself.
type RefreshSignal struct{}

func (RefreshSignal) WireType() string { return TypeRefresh }

func (RefreshSignal) WirePayload() any { return struct{}{} }

func (LogLine) sealed()        {}
func (FrameUpdate) sealed()    {}
func (GalleryUpdated) sealed() {}
func (AgentState) sealed()     {}
func (RefreshSignal) sealed()  {}

// Wire payloads.

type LogMessagePayload struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

type DataPayload struct {
	Data string `json:"data"`
}

type AgentStateFlags struct {
	Paused  bool `json:"paused"`
	Stopped bool `json:"stopped"`
}

type AgentStatePayload struct {
	State AgentStateFlags `json:"state"`
}

// Publisher delivers events to whoever is watching.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Status is shorthand for a status-category log line.
func Status(emoji, message string) LogLine {
	return LogLine{Message: message, Emoji: emoji, Type: LogStatus}
}
