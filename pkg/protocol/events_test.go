package protocol

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEvent(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{"resize", `{"type":"resize","width":800,"height":600}`, Resize{Width: 800, Height: 600}},
		{"mouse_move", `{"type":"mouse_move","x":10.4,"y":20.6}`, MouseMove{X: 10, Y: 21}},
		{"raw_mouse_move", `{"type":"raw_mouse_move","dx":-3,"dy":4}`, RawMouseMove{DX: -3, DY: 4}},
		{"mouse_down", `{"type":"mouse_down","x":1,"y":2,"button":"right"}`, MouseDown{X: 1, Y: 2, Button: MouseRight}},
		{"mouse_up default button", `{"type":"mouse_up","x":1,"y":2}`, MouseUp{X: 1, Y: 2, Button: MouseLeft}},
		{"mouse_wheel", `{"type":"mouse_wheel","dy":-1}`, MouseWheel{DY: -1}},
		{"key_down", `{"type":"key_down","key":"Space","modifiers":"shift+ctrl","repeat":true}`, KeyDown{Key: KeySpace, Modifiers: ModShift | ModCtrl, Repeat: true}},
		{"key_press", `{"type":"key_press","char":"é"}`, KeyPress{Char: 'é'}},
		{"key_up", `{"type":"key_up","key":"Escape"}`, KeyUp{Key: KeyEscape}},
		{"touch", `{"type":"touch","id":2,"phase":"moved","x":1.5,"y":2.25}`, Touch{ID: 2, Phase: TouchMoved, X: 1.5, Y: 2.25}},
		{"paste", `{"type":"paste","text":"hello"}`, Paste{Text: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			require.NoError(t, json.Unmarshal([]byte(tt.line), &r))

			ev, err := r.Event()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
			assert.Equal(t, tt.want.Type(), ev.Type())
		})
	}
}

func TestRecordEventInvalid(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{"missing type", Record{}},
		{"unknown type", Record{Type: "gamepad"}},
		{"negative resize", Record{Type: EventResize, Width: -1}},
		{"empty char", Record{Type: EventKeyPress}},
		{"two chars", Record{Type: EventKeyPress, Char: "ab"}},
		{"touch without phase", Record{Type: EventTouch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.record.Event()
			var invalid *InvalidEventError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func TestRecordOf(t *testing.T) {
	events := []Event{
		Resize{Width: 1024, Height: 768},
		MouseDown{X: 3, Y: 4, Button: MouseMiddle},
		KeyDown{Key: KeyArrowLeft, Modifiers: ModAlt},
		KeyPress{Char: 'x'},
		Touch{ID: 1, Phase: TouchBegan, X: 0.5, Y: 8},
		Paste{Text: "clip"},
	}

	for _, ev := range events {
		r := RecordOf(ev)
		data, err := json.Marshal(r)
		require.NoError(t, err)

		var decoded Record
		require.NoError(t, json.Unmarshal(data, &decoded))
		back, err := decoded.Event()
		require.NoError(t, err)
		assert.Equal(t, ev, back, string(data))
	}
}

func TestPixelSaturates(t *testing.T) {
	assert.Equal(t, int32(math.MaxInt32), pixel(1e12))
	assert.Equal(t, int32(math.MinInt32), pixel(-1e12))
	assert.Equal(t, int32(-2), pixel(-1.5))
}
