package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyCode is a keyboard key as numbered by the windowing layer. Values
// follow the sokol/GLFW key numbering.
type KeyCode int32

const (
	KeySpace        KeyCode = 32
	KeyApostrophe   KeyCode = 39
	KeyComma        KeyCode = 44
	KeyMinus        KeyCode = 45
	KeyPeriod       KeyCode = 46
	KeySlash        KeyCode = 47
	Key0            KeyCode = 48
	Key9            KeyCode = 57
	KeySemicolon    KeyCode = 59
	KeyEqual        KeyCode = 61
	KeyA            KeyCode = 65
	KeyZ            KeyCode = 90
	KeyLeftBracket  KeyCode = 91
	KeyBackslash    KeyCode = 92
	KeyRightBracket KeyCode = 93
	KeyGraveAccent  KeyCode = 96
	KeyWorld1       KeyCode = 161
	KeyWorld2       KeyCode = 162

	KeyEscape      KeyCode = 256
	KeyEnter       KeyCode = 257
	KeyTab         KeyCode = 258
	KeyBackspace   KeyCode = 259
	KeyInsert      KeyCode = 260
	KeyDelete      KeyCode = 261
	KeyArrowRight  KeyCode = 262
	KeyArrowLeft   KeyCode = 263
	KeyArrowDown   KeyCode = 264
	KeyArrowUp     KeyCode = 265
	KeyPageUp      KeyCode = 266
	KeyPageDown    KeyCode = 267
	KeyHome        KeyCode = 268
	KeyEnd         KeyCode = 269
	KeyCapsLock    KeyCode = 280
	KeyScrollLock  KeyCode = 281
	KeyNumLock     KeyCode = 282
	KeyPrintScreen KeyCode = 283
	KeyPause       KeyCode = 284
	KeyF1          KeyCode = 290
	KeyF25         KeyCode = 314
	KeyKp0         KeyCode = 320
	KeyKp9         KeyCode = 329
	KeyKpDecimal   KeyCode = 330
	KeyKpDivide    KeyCode = 331
	KeyKpMultiply  KeyCode = 332
	KeyKpSubtract  KeyCode = 333
	KeyKpAdd       KeyCode = 334
	KeyKpEnter     KeyCode = 335
	KeyKpEqual     KeyCode = 336

	KeyLeftShift    KeyCode = 340
	KeyLeftControl  KeyCode = 341
	KeyLeftAlt      KeyCode = 342
	KeyLeftSuper    KeyCode = 343
	KeyRightShift   KeyCode = 344
	KeyRightControl KeyCode = 345
	KeyRightAlt     KeyCode = 346
	KeyRightSuper   KeyCode = 347
	KeyMenu         KeyCode = 348

	KeyUnknown KeyCode = 511
)

var (
	keyNames = map[KeyCode]string{
		KeySpace:        "Space",
		KeyApostrophe:   "Apostrophe",
		KeyComma:        "Comma",
		KeyMinus:        "Minus",
		KeyPeriod:       "Period",
		KeySlash:        "Slash",
		KeySemicolon:    "Semicolon",
		KeyEqual:        "Equal",
		KeyLeftBracket:  "LeftBracket",
		KeyBackslash:    "Backslash",
		KeyRightBracket: "RightBracket",
		KeyGraveAccent:  "GraveAccent",
		KeyWorld1:       "World1",
		KeyWorld2:       "World2",
		KeyEscape:       "Escape",
		KeyEnter:        "Enter",
		KeyTab:          "Tab",
		KeyBackspace:    "Backspace",
		KeyInsert:       "Insert",
		KeyDelete:       "Delete",
		KeyArrowRight:   "Right",
		KeyArrowLeft:    "Left",
		KeyArrowDown:    "Down",
		KeyArrowUp:      "Up",
		KeyPageUp:       "PageUp",
		KeyPageDown:     "PageDown",
		KeyHome:         "Home",
		KeyEnd:          "End",
		KeyCapsLock:     "CapsLock",
		KeyScrollLock:   "ScrollLock",
		KeyNumLock:      "NumLock",
		KeyPrintScreen:  "PrintScreen",
		KeyPause:        "Pause",
		KeyKpDecimal:    "KpDecimal",
		KeyKpDivide:     "KpDivide",
		KeyKpMultiply:   "KpMultiply",
		KeyKpSubtract:   "KpSubtract",
		KeyKpAdd:        "KpAdd",
		KeyKpEnter:      "KpEnter",
		KeyKpEqual:      "KpEqual",
		KeyLeftShift:    "LeftShift",
		KeyLeftControl:  "LeftControl",
		KeyLeftAlt:      "LeftAlt",
		KeyLeftSuper:    "LeftSuper",
		KeyRightShift:   "RightShift",
		KeyRightControl: "RightControl",
		KeyRightAlt:     "RightAlt",
		KeyRightSuper:   "RightSuper",
		KeyMenu:         "Menu",
		KeyUnknown:      "Unknown",
	}

	// keyAliases are older names still found in game code.
	keyAliases = map[string]KeyCode{
		"return":      KeyEnter,
		"back":        KeyBackspace,
		"numpadenter": KeyKpEnter,
		"esc":         KeyEscape,
		"arrowright":  KeyArrowRight,
		"arrowleft":   KeyArrowLeft,
		"arrowdown":   KeyArrowDown,
		"arrowup":     KeyArrowUp,
	}

	keysByName = make(map[string]KeyCode)
)

func init() {
	for k := Key0; k <= Key9; k++ {
		keyNames[k] = "Key" + string(rune('0'+k-Key0))
	}
	for k := KeyA; k <= KeyZ; k++ {
		keyNames[k] = string(rune('A' + k - KeyA))
	}
	for k := KeyF1; k <= KeyF25; k++ {
		keyNames[k] = "F" + strconv.Itoa(int(k-KeyF1)+1)
	}
	for k := KeyKp0; k <= KeyKp9; k++ {
		keyNames[k] = "Kp" + string(rune('0'+k-KeyKp0))
	}

	for code, name := range keyNames {
		keysByName[normalizeName(name)] = code
	}
	for name, code := range keyAliases {
		keysByName[name] = code
	}
}

// normalizeName folds case and drops separators, so "left_shift",
// "left-shift" and "LeftShift" are the same key.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// ParseKeyCode resolves a key name or a decimal key code.
func ParseKeyCode(s string) (KeyCode, error) {
	if code, ok := keysByName[normalizeName(s)]; ok {
		return code, nil
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32); err == nil {
		return KeyCode(n), nil
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// String returns the key name, or the decimal code for unnamed keys.
func (k KeyCode) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return strconv.Itoa(int(k))
}

func (k KeyCode) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *KeyCode) UnmarshalText(text []byte) error {
	code, err := ParseKeyCode(string(text))
	if err != nil {
		return err
	}
	*k = code
	return nil
}
