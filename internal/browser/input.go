package browser

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/proto"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
)

// CDP modifier bits.
const (
	modAlt   = 1
	modCtrl  = 2
	modMeta  = 4
	modShift = 8
)

// navigator is the navigation surface of a page.
type navigator interface {
	Navigate(url string) error
	NavigateBack() error
	NavigateForward() error
	Reload() error
}

type pointerDetails struct {
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Button     json.RawMessage `json:"button,omitempty"`
	ClickCount int             `json:"clickCount,omitempty"`
	DeltaX     float64         `json:"deltaX,omitempty"`
	DeltaY     float64         `json:"deltaY,omitempty"`
	modifierDetails
}

type keyDetails struct {
	Key     string `json:"key"`
	Code    string `json:"code,omitempty"`
	KeyCode int    `json:"keyCode,omitempty"`
	modifierDetails
}

type modifierDetails struct {
	AltKey   bool `json:"altKey,omitempty"`
	CtrlKey  bool `json:"ctrlKey,omitempty"`
	MetaKey  bool `json:"metaKey,omitempty"`
	ShiftKey bool `json:"shiftKey,omitempty"`
}

func (m modifierDetails) mask() int {
	mask := 0
	if m.AltKey {
		mask |= modAlt
	}
	if m.CtrlKey {
		mask |= modCtrl
	}
	if m.MetaKey {
		mask |= modMeta
	}
	if m.ShiftKey {
		mask |= modShift
	}
	return mask
}

type textDetails struct {
	Text string `json:"text"`
}

type navigateDetails struct {
	URL string `json:"url"`
}

// dispatchInput replays one dashboard input on the page through CDP.
func dispatchInput(client proto.Client, nav navigator, in session.Input) error {
	switch in.Kind {
	case "click":
		var d pointerDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		count := d.ClickCount
		if count <= 0 {
			count = 1
		}
		if err := mouseEvent(client, proto.InputDispatchMouseEventTypeMousePressed, d, count); err != nil {
			return err
		}
		return mouseEvent(client, proto.InputDispatchMouseEventTypeMouseReleased, d, count)

	case "mousedown", "mouseup":
		var d pointerDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		typ := proto.InputDispatchMouseEventTypeMousePressed
		if in.Kind == "mouseup" {
			typ = proto.InputDispatchMouseEventTypeMouseReleased
		}
		return mouseEvent(client, typ, d, 1)

	case "mousemove":
		var d pointerDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		return proto.InputDispatchMouseEvent{
			Type:      proto.InputDispatchMouseEventTypeMouseMoved,
			X:         d.X,
			Y:         d.Y,
			Modifiers: d.mask(),
		}.Call(client)

	case "scroll", "wheel":
		var d pointerDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		return proto.InputDispatchMouseEvent{
			Type:      proto.InputDispatchMouseEventTypeMouseWheel,
			X:         d.X,
			Y:         d.Y,
			DeltaX:    d.DeltaX,
			DeltaY:    d.DeltaY,
			Modifiers: d.mask(),
		}.Call(client)

	case "keydown", "keyup", "keypress":
		var d keyDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		if d.Key == "" {
			return fmt.Errorf("%s: missing key", in.Kind)
		}
		return keyEvent(in.Kind, d).Call(client)

	case "text":
		var d textDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		return proto.InputInsertText{Text: d.Text}.Call(client)

	case "navigate":
		var d navigateDetails
		if err := decodeDetails(in, &d); err != nil {
			return err
		}
		if strings.TrimSpace(d.URL) == "" {
			return fmt.Errorf("navigate: missing url")
		}
		return nav.Navigate(d.URL)

	case "back":
		return nav.NavigateBack()
	case "forward":
		return nav.NavigateForward()
	case "reload":
		return nav.Reload()

	default:
		return fmt.Errorf("unsupported input type: %s", in.Kind)
	}
}

func decodeDetails(in session.Input, v any) error {
	if len(in.Details) == 0 || string(in.Details) == "null" {
		return nil
	}
	if err := json.Unmarshal(in.Details, v); err != nil {
		return fmt.Errorf("%s details: %w", in.Kind, err)
	}
	return nil
}

func mouseEvent(client proto.Client, typ proto.InputDispatchMouseEventType, d pointerDetails, clickCount int) error {
	return proto.InputDispatchMouseEvent{
		Type:       typ,
		X:          d.X,
		Y:          d.Y,
		Button:     mouseButton(d.Button),
		ClickCount: clickCount,
		Modifiers:  d.mask(),
	}.Call(client)
}

// mouseButton accepts DOM button numbers or CDP button names.
func mouseButton(raw json.RawMessage) proto.InputMouseButton {
	if len(raw) == 0 {
		return proto.InputMouseButtonLeft
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n {
		case 1:
			return proto.InputMouseButtonMiddle
		case 2:
			return proto.InputMouseButtonRight
		default:
			return proto.InputMouseButtonLeft
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(s) {
		case "middle":
			return proto.InputMouseButtonMiddle
		case "right":
			return proto.InputMouseButtonRight
		}
	}
	return proto.InputMouseButtonLeft
}

func keyEvent(kind string, d keyDetails) proto.InputDispatchKeyEvent {
	ev := proto.InputDispatchKeyEvent{
		Key:                   d.Key,
		Code:                  d.Code,
		WindowsVirtualKeyCode: d.KeyCode,
		Modifiers:             d.mask(),
	}
	printable := utf8.RuneCountInString(d.Key) == 1

	switch kind {
	case "keyup":
		ev.Type = proto.InputDispatchKeyEventTypeKeyUp
	case "keypress":
		ev.Type = proto.InputDispatchKeyEventTypeChar
		ev.Text = d.Key
	default:
		if printable && d.mask()&^modShift == 0 {
			ev.Type = proto.InputDispatchKeyEventTypeKeyDown
			ev.Text = d.Key
		} else {
			ev.Type = proto.InputDispatchKeyEventTypeRawKeyDown
		}
	}
	if kind == "keydown" && d.Key == "Enter" {
		ev.Type = proto.InputDispatchKeyEventTypeKeyDown
		ev.Text = "\r"
	}
	return ev
}
