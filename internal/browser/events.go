package browser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

const maxLoggedURL = 120

// consoleLine renders a page console call as a dashboard log line.
func consoleLine(ev *proto.RuntimeConsoleAPICalled) events.LogLine {
	emoji := "🖥️"
	switch ev.Type {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		emoji = "❌"
	case proto.RuntimeConsoleAPICalledTypeWarning:
		emoji = "⚠️"
	case proto.RuntimeConsoleAPICalledTypeDebug:
		emoji = "🐛"
	}
	msg := fmt.Sprintf("[%s] %s", ev.Type, stringifyConsoleArgs(ev.Args))
	return events.LogLine{Message: msg, Emoji: emoji, Type: events.LogConsole}
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

// loggedResource reports whether a resource type is worth a network line.
// Images, fonts and stylesheets would drown the log.
func loggedResource(t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeDocument, proto.NetworkResourceTypeXHR, proto.NetworkResourceTypeFetch:
		return true
	default:
		return false
	}
}

func requestLine(ev *proto.NetworkRequestWillBeSent) (events.LogLine, bool) {
	if ev.Request == nil || !loggedResource(ev.Type) {
		return events.LogLine{}, false
	}
	return events.LogLine{
		Message: fmt.Sprintf("%s %s", ev.Request.Method, shortenURL(ev.Request.URL)),
		Emoji:   "📤",
		Type:    events.LogNetwork,
	}, true
}

func responseLine(ev *proto.NetworkResponseReceived) (events.LogLine, bool) {
	if ev.Response == nil || !loggedResource(ev.Type) {
		return events.LogLine{}, false
	}
	emoji := "📥"
	if ev.Response.Status >= 400 {
		emoji = "❌"
	}
	return events.LogLine{
		Message: fmt.Sprintf("%d %s", ev.Response.Status, shortenURL(ev.Response.URL)),
		Emoji:   emoji,
		Type:    events.LogNetwork,
	}, true
}

// frameDataURL wraps raw screencast JPEG bytes for the dashboard.
func frameDataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

func shortenURL(u string) string {
	if len(u) <= maxLoggedURL {
		return u
	}
	return u[:maxLoggedURL] + "..."
}
