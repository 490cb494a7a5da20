package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// MouseButton identifies a mouse button.
type MouseButton int32

const (
	MouseLeft   MouseButton = 0
	MouseRight  MouseButton = 1
	MouseMiddle MouseButton = 2
)

var mouseButtonNames = map[MouseButton]string{
	MouseLeft:   "left",
	MouseRight:  "right",
	MouseMiddle: "middle",
}

func (b MouseButton) String() string {
	if name, ok := mouseButtonNames[b]; ok {
		return name
	}
	return strconv.Itoa(int(b))
}

func (b MouseButton) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *MouseButton) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), mouseButtonNames)
	if err != nil {
		return fmt.Errorf("mouse button: %w", err)
	}
	*b = v
	return nil
}

// TouchPhase is the stage of a touch point.
type TouchPhase int32

const (
	TouchBegan     TouchPhase = 10
	TouchMoved     TouchPhase = 11
	TouchEnded     TouchPhase = 12
	TouchCancelled TouchPhase = 13
)

var touchPhaseNames = map[TouchPhase]string{
	TouchBegan:     "began",
	TouchMoved:     "moved",
	TouchEnded:     "ended",
	TouchCancelled: "cancelled",
}

func (p TouchPhase) String() string {
	if name, ok := touchPhaseNames[p]; ok {
		return name
	}
	return strconv.Itoa(int(p))
}

// Valid reports whether p is one of the four phases.
func (p TouchPhase) Valid() bool {
	_, ok := touchPhaseNames[p]
	return ok
}

func (p TouchPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *TouchPhase) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), touchPhaseNames)
	if err != nil {
		return fmt.Errorf("touch phase: %w", err)
	}
	*p = v
	return nil
}

// Modifiers is a bit set of held modifier keys.
type Modifiers int32

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{ModShift, "shift"},
	{ModCtrl, "ctrl"},
	{ModAlt, "alt"},
	{ModSuper, "super"},
}

// Has reports whether every bit of m2 is set in m.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

// String joins the held modifiers with "+", e.g. "shift+ctrl".
func (m Modifiers) String() string {
	var names []string
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			names = append(names, mn.name)
		}
	}
	return strings.Join(names, "+")
}

func (m Modifiers) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts "shift+ctrl", "shift|ctrl" or a decimal bit set.
func (m *Modifiers) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		*m = Modifiers(n)
		return nil
	}

	var out Modifiers
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == '|' }) {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "control" {
			part = "ctrl"
		}
		found := false
		for _, mn := range modifierNames {
			if mn.name == part {
				out |= mn.mod
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown modifier %q", part)
		}
	}
	*m = out
	return nil
}

func parseEnum[T ~int32](s string, names map[T]string) (T, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return T(n), nil
	}
	return 0, fmt.Errorf("unknown value %q", s)
}
