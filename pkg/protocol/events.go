// Package protocol defines the input events a host forwards to a game and
// their JSON and yaml encodings.
package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// EventType names an input event on the wire.
type EventType string

const (
	EventResize       EventType = "resize"
	EventMouseMove    EventType = "mouse_move"
	EventRawMouseMove EventType = "raw_mouse_move"
	EventMouseDown    EventType = "mouse_down"
	EventMouseUp      EventType = "mouse_up"
	EventMouseWheel   EventType = "mouse_wheel"
	EventKeyDown      EventType = "key_down"
	EventKeyPress     EventType = "key_press"
	EventKeyUp        EventType = "key_up"
	EventTouch        EventType = "touch"
	EventPaste        EventType = "paste"
)

// Event is an input event for a game instance.
type Event interface {
	Type() EventType
}

// Resize reports a new canvas size in pixels.
type Resize struct {
	Width  int32
	Height int32
}

// MouseMove reports the cursor position.
type MouseMove struct {
	X int32
	Y int32
}

// RawMouseMove reports relative motion, independent of cursor position.
type RawMouseMove struct {
	DX int32
	DY int32
}

// MouseDown reports a button press.
type MouseDown struct {
	X      int32
	Y      int32
	Button MouseButton
}

// MouseUp reports a button release.
type MouseUp struct {
	X      int32
	Y      int32
	Button MouseButton
}

// MouseWheel reports wheel motion.
type MouseWheel struct {
	DX int32
	DY int32
}

// KeyDown reports a key press.
type KeyDown struct {
	Key       KeyCode
	Modifiers Modifiers
	Repeat    bool
}

// KeyPress reports a typed character.
type KeyPress struct {
	Char rune
}

// KeyUp reports a key release.
type KeyUp struct {
	Key KeyCode
}

// Touch reports a touch point.
type Touch struct {
	ID    int32
	Phase TouchPhase
	X     float32
	Y     float32
}

// Paste delivers clipboard text.
type Paste struct {
	Text string
}

func (Resize) Type() EventType       { return EventResize }
func (MouseMove) Type() EventType    { return EventMouseMove }
func (RawMouseMove) Type() EventType { return EventRawMouseMove }
func (MouseDown) Type() EventType    { return EventMouseDown }
func (MouseUp) Type() EventType      { return EventMouseUp }
func (MouseWheel) Type() EventType   { return EventMouseWheel }
func (KeyDown) Type() EventType      { return EventKeyDown }
func (KeyPress) Type() EventType     { return EventKeyPress }
func (KeyUp) Type() EventType        { return EventKeyUp }
func (Touch) Type() EventType        { return EventTouch }
func (Paste) Type() EventType        { return EventPaste }

// Record is the flat wire form of an event. Only the fields of Type are
// meaningful. Frame is used by scripts and ignored elsewhere.
type Record struct {
	Frame uint64    `json:"frame,omitempty" yaml:"frame,omitempty"`
	Type  EventType `json:"type" yaml:"type"`

	Width  int32 `json:"width,omitempty" yaml:"width,omitempty"`
	Height int32 `json:"height,omitempty" yaml:"height,omitempty"`

	X  float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y  float64 `json:"y,omitempty" yaml:"y,omitempty"`
	DX int32   `json:"dx,omitempty" yaml:"dx,omitempty"`
	DY int32   `json:"dy,omitempty" yaml:"dy,omitempty"`

	Button MouseButton `json:"button,omitempty" yaml:"button,omitempty"`

	Key       KeyCode   `json:"key,omitempty" yaml:"key,omitempty"`
	Modifiers Modifiers `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Repeat    bool      `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	Char      string    `json:"char,omitempty" yaml:"char,omitempty"`

	ID    int32      `json:"id,omitempty" yaml:"id,omitempty"`
	Phase TouchPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// InvalidEventError occurs when a record cannot be turned into an event.
type InvalidEventError struct {
	Type   EventType
	Reason string
}

func (e *InvalidEventError) Error() string {
	if e.Type == "" {
		return "invalid event: " + e.Reason
	}
	return fmt.Sprintf("invalid %s event: %s", e.Type, e.Reason)
}

// Event converts r into its typed event.
func (r *Record) Event() (Event, error) {
	switch r.Type {
	case EventResize:
		if r.Width < 0 || r.Height < 0 {
			return nil, &InvalidEventError{Type: r.Type, Reason: "negative size"}
		}
		return Resize{Width: r.Width, Height: r.Height}, nil
	case EventMouseMove:
		return MouseMove{X: pixel(r.X), Y: pixel(r.Y)}, nil
	case EventRawMouseMove:
		return RawMouseMove{DX: r.DX, DY: r.DY}, nil
	case EventMouseDown:
		return MouseDown{X: pixel(r.X), Y: pixel(r.Y), Button: r.Button}, nil
	case EventMouseUp:
		return MouseUp{X: pixel(r.X), Y: pixel(r.Y), Button: r.Button}, nil
	case EventMouseWheel:
		return MouseWheel{DX: r.DX, DY: r.DY}, nil
	case EventKeyDown:
		return KeyDown{Key: r.Key, Modifiers: r.Modifiers, Repeat: r.Repeat}, nil
	case EventKeyPress:
		ch, size := utf8.DecodeRuneInString(r.Char)
		if ch == utf8.RuneError || size != len(r.Char) {
			return nil, &InvalidEventError{Type: r.Type, Reason: fmt.Sprintf("char must be exactly one character, got %q", r.Char)}
		}
		return KeyPress{Char: ch}, nil
	case EventKeyUp:
		return KeyUp{Key: r.Key}, nil
	case EventTouch:
		if !r.Phase.Valid() {
			return nil, &InvalidEventError{Type: r.Type, Reason: fmt.Sprintf("unknown phase %d", r.Phase)}
		}
		return Touch{ID: r.ID, Phase: r.Phase, X: float32(r.X), Y: float32(r.Y)}, nil
	case EventPaste:
		return Paste{Text: r.Text}, nil
	case "":
		return nil, &InvalidEventError{Reason: "missing type"}
	default:
		return nil, &InvalidEventError{Type: r.Type, Reason: "unknown type"}
	}
}

// RecordOf returns the wire form of ev.
func RecordOf(ev Event) Record {
	r := Record{Type: ev.Type()}
	switch e := ev.(type) {
	case Resize:
		r.Width, r.Height = e.Width, e.Height
	case MouseMove:
		r.X, r.Y = float64(e.X), float64(e.Y)
	case RawMouseMove:
		r.DX, r.DY = e.DX, e.DY
	case MouseDown:
		r.X, r.Y, r.Button = float64(e.X), float64(e.Y), e.Button
	case MouseUp:
		r.X, r.Y, r.Button = float64(e.X), float64(e.Y), e.Button
	case MouseWheel:
		r.DX, r.DY = e.DX, e.DY
	case KeyDown:
		r.Key, r.Modifiers, r.Repeat = e.Key, e.Modifiers, e.Repeat
	case KeyPress:
		r.Char = string(e.Char)
	case KeyUp:
		r.Key = e.Key
	case Touch:
		r.ID, r.Phase, r.X, r.Y = e.ID, e.Phase, float64(e.X), float64(e.Y)
	case Paste:
		r.Text = e.Text
	}
	return r
}

// pixel rounds a coordinate to the nearest pixel, saturating at the i32 range.
func pixel(v float64) int32 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
