package protocol

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Script is a recorded input sequence replayed against a game, keyed by
// frame number.
//
//	name: drop-two-bodies
//	events:
//	  - {frame: 0, type: resize, width: 800, height: 600}
//	  - {frame: 30, type: mouse_down, x: 400, y: 120, button: left}
type Script struct {
	Name   string   `yaml:"name,omitempty"`
	Events []Record `yaml:"events"`

	frames []uint64
	events []Event
}

// ScriptError occurs when a script entry is not a valid event.
type ScriptError struct {
	Index int
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script event %d: %v", e.Index, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// ParseScript decodes and validates a yaml script. Events are ordered by
// frame; events of the same frame keep their file order.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	type entry struct {
		frame uint64
		event Event
	}
	entries := make([]entry, 0, len(s.Events))
	for i := range s.Events {
		ev, err := s.Events[i].Event()
		if err != nil {
			return nil, &ScriptError{Index: i, Err: err}
		}
		entries = append(entries, entry{frame: s.Events[i].Frame, event: ev})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].frame < entries[j].frame })
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].Frame < s.Events[j].Frame })

	s.frames = make([]uint64, len(entries))
	s.events = make([]Event, len(entries))
	for i, e := range entries {
		s.frames[i] = e.frame
		s.events[i] = e.event
	}
	return &s, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Len returns the number of events.
func (s *Script) Len() int {
	return len(s.events)
}

// LastFrame returns the frame of the final event, or 0 for an empty script.
func (s *Script) LastFrame() uint64 {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[len(s.frames)-1]
}

// Due returns the events scheduled for frame, in order.
func (s *Script) Due(frame uint64) []Event {
	lo := sort.Search(len(s.frames), func(i int) bool { return s.frames[i] >= frame })
	hi := lo
	for hi < len(s.frames) && s.frames[hi] == frame {
		hi++
	}
	if lo == hi {
		return nil
	}
	return s.events[lo:hi:hi]
}
