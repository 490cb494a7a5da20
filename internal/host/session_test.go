package host

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/simple-gravity/gravity-host/internal/config"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/simple-gravity/gravity-host/internal/wasm/wasmtest"
	"github.com/simple-gravity/gravity-host/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostQueueFull(t *testing.T) {
	s := openGame(t, func(cfg *config.HostConfig) { cfg.QueueSize = 2 })

	// The initial resize holds one slot.
	require.NoError(t, s.Post(protocol.MouseMove{X: 3, Y: 4}))
	assert.ErrorIs(t, s.Post(protocol.MouseMove{X: 5, Y: 6}), ErrQueueFull)

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, uint32(3), mailbox(t, s, wasmtest.MailboxArgs))
	assert.Equal(t, uint32(4), mailbox(t, s, wasmtest.MailboxArgs+4))

	require.NoError(t, s.Post(protocol.MouseMove{X: 5, Y: 6}))
}

func TestStepDeliversEventsInOrder(t *testing.T) {
	s := openGame(t, nil)

	require.NoError(t, s.Post(protocol.KeyDown{Key: protocol.KeySpace, Modifiers: protocol.ModShift}))
	require.NoError(t, s.Post(protocol.MouseWheel{DX: -1, DY: 2}))
	require.NoError(t, s.Step(context.Background()))

	// The wheel event came last, so its arguments are in the mailbox.
	assert.Equal(t, int32(-1), int32(mailbox(t, s, wasmtest.MailboxArgs)))
	assert.Equal(t, uint32(2), mailbox(t, s, wasmtest.MailboxArgs+4))
}

func TestStepDispatchesScriptBeforeQueue(t *testing.T) {
	script := filepath.Join(t.TempDir(), "press.yaml")
	require.NoError(t, os.WriteFile(script, []byte("events:\n  - {frame: 3, type: mouse_down, x: 10, y: 20, button: right}\n"), 0644))

	s := openGame(t, func(cfg *config.HostConfig) { cfg.Script = script })
	ctx := context.Background()

	for s.Frame() < 3 {
		require.NoError(t, s.Step(ctx))
	}

	// Queued before the frame whose script event is due.
	require.NoError(t, s.Post(protocol.MouseMove{X: 5, Y: 6}))
	require.NoError(t, s.Step(ctx))

	// mouse_move overwrote the first two arguments of mouse_down, so it ran
	// second. The third argument is still the scripted button.
	assert.Equal(t, uint32(5), mailbox(t, s, wasmtest.MailboxArgs))
	assert.Equal(t, uint32(6), mailbox(t, s, wasmtest.MailboxArgs+4))
	assert.Equal(t, uint32(protocol.MouseRight), mailbox(t, s, wasmtest.MailboxArgs+8))
	assert.Equal(t, uint64(4), s.Frame())
}

func TestPaste(t *testing.T) {
	s := openGame(t, nil)

	require.NoError(t, s.Paste("orbit"))
	require.NoError(t, s.Step(context.Background()))

	ptr := mailbox(t, s, wasmtest.MailboxArgs)
	length := mailbox(t, s, wasmtest.MailboxArgs+4)
	assert.Equal(t, uint32(wasmtest.HeapBase), ptr)
	assert.Equal(t, uint32(5), length)

	text, err := s.Output().Memory().ReadText(ptr, length)
	require.NoError(t, err)
	assert.Equal(t, "orbit", text)
}

func TestDispatch(t *testing.T) {
	s := openGame(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		event protocol.Event
		call  int32
		args  []uint32
	}{
		{"resize", protocol.Resize{Width: 320, Height: 240}, wasmtest.CallResize, []uint32{320, 240}},
		{"mouse move", protocol.MouseMove{X: 7, Y: 9}, wasmtest.CallMouseMove, []uint32{7, 9}},
		{"raw mouse move", protocol.RawMouseMove{DX: 2, DY: 3}, wasmtest.CallRawMouseMove, []uint32{2, 3}},
		{"mouse down", protocol.MouseDown{X: 1, Y: 2, Button: protocol.MouseMiddle}, wasmtest.CallMouseDown, []uint32{1, 2, 2}},
		{"mouse up", protocol.MouseUp{X: 4, Y: 5, Button: protocol.MouseRight}, wasmtest.CallMouseUp, []uint32{4, 5, 1}},
		{"mouse wheel", protocol.MouseWheel{DX: 0, DY: 1}, wasmtest.CallMouseWheel, []uint32{0, 1}},
		{"key down", protocol.KeyDown{Key: protocol.KeyA, Modifiers: protocol.ModCtrl | protocol.ModAlt, Repeat: true}, wasmtest.CallKeyDown, []uint32{uint32(protocol.KeyA), 6, 1}},
		{"key press", protocol.KeyPress{Char: 'é'}, wasmtest.CallKeyPress, []uint32{0xe9}},
		{"key up", protocol.KeyUp{Key: protocol.KeyEscape}, wasmtest.CallKeyUp, []uint32{uint32(protocol.KeyEscape)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.dispatch(ctx, tt.event))
			assert.Equal(t, uint32(tt.call), mailbox(t, s, wasmtest.MailboxCall))
			for i, want := range tt.args {
				assert.Equal(t, want, mailbox(t, s, wasmtest.MailboxArgs+uint32(4*i)), "arg %d", i)
			}
		})
	}
}

func TestDispatchTouch(t *testing.T) {
	s := openGame(t, nil)

	require.NoError(t, s.dispatch(context.Background(), protocol.Touch{ID: 3, Phase: protocol.TouchMoved, X: 1.5, Y: -2.25}))

	assert.Equal(t, uint32(wasmtest.CallTouch), mailbox(t, s, wasmtest.MailboxCall))
	assert.Equal(t, uint32(3), mailbox(t, s, wasmtest.MailboxArgs))
	assert.Equal(t, uint32(protocol.TouchMoved), mailbox(t, s, wasmtest.MailboxArgs+4))
	assert.Equal(t, float32(1.5), math.Float32frombits(mailbox(t, s, wasmtest.MailboxArgs+8)))
	assert.Equal(t, float32(-2.25), math.Float32frombits(mailbox(t, s, wasmtest.MailboxArgs+12)))
}

type unknownEvent struct{}

func (unknownEvent) Type() protocol.EventType { return "warp" }

func TestDispatchUnknownEvent(t *testing.T) {
	s := openGame(t, nil)
	err := s.dispatch(context.Background(), unknownEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported event")
}

func TestRunStopsAtMaxFrames(t *testing.T) {
	s := openGame(t, func(cfg *config.HostConfig) { cfg.Frame.MaxFrames = 3 })

	require.NoError(t, s.Run(context.Background(), nil))
	assert.Equal(t, uint64(3), s.Frame())
	assert.Equal(t, uint32(3), mailbox(t, s, wasmtest.FrameCounter))
}

func TestRunPumpsFeed(t *testing.T) {
	s := openGame(t, func(cfg *config.HostConfig) {
		cfg.Frame.FPS = 200
		cfg.Frame.MaxFrames = 40
	})
	// Let the boot file land first so file_loaded cannot overwrite the mailbox.
	stepUntil(t, s, func() bool {
		return mailbox(t, s, wasmtest.FileSize) == uint32(len(levelData))
	})

	feed := strings.NewReader(strings.Join([]string{
		`{"type": "mouse_move", "x": 5, "y": 6}`,
		`not json`,
		`{"type": "touch", "phase": "teleported"}`,
		``,
		`{"type": "key_down", "key": "right", "modifiers": "shift"}`,
	}, "\n"))

	require.NoError(t, s.Run(context.Background(), feed))
	assert.Equal(t, uint64(40), s.Frame())
	assert.Equal(t, uint32(protocol.KeyArrowRight), mailbox(t, s, wasmtest.MailboxArgs))
	assert.Equal(t, uint32(protocol.ModShift), mailbox(t, s, wasmtest.MailboxArgs+4))
}

func TestRunCancelled(t *testing.T) {
	s := openGame(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionImports(t *testing.T) {
	s := openGame(t, nil)

	assert.Equal(t, "simple gravity", s.Title())

	s.SetClipboard("copied")
	s.SetWindowTitle("orbit")
	s.SetCursor("pointer")
	s.Log(wasm.LogWarn, "guest warning")

	assert.Equal(t, "copied", s.Clipboard())
	assert.Equal(t, "orbit", s.Title())
	assert.Equal(t, "pointer", s.Cursor())

	first := s.Now()
	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, s.Now(), first)
}

func TestFileTableUnknownHandle(t *testing.T) {
	s := openGame(t, nil)

	assert.Equal(t, int32(-1), s.FileSize(99))
	_, ok := s.TakeFile(99)
	assert.False(t, ok)
}

func TestNewSessionRejectsEmptyQueue(t *testing.T) {
	_, err := newSession(SessionConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestDirAssets(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "level.ron"), []byte(levelData), 0644))

	assets, err := newAssetSource(root, "", nil)
	require.NoError(t, err)

	data, err := assets.Read(context.Background(), "assets/level.ron")
	require.NoError(t, err)
	assert.Equal(t, levelData, string(data))

	for _, path := range []string{"../secret", "/etc/passwd", "assets/../../secret"} {
		_, err := assets.Read(context.Background(), path)
		var pathErr *AssetPathError
		assert.ErrorAs(t, err, &pathErr, path)
	}
}

func TestURLAssets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/orbit/assets/level.ron" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(levelData))
	}))
	defer server.Close()

	assets, err := newAssetSource("", server.URL+"/games/orbit", server.Client())
	require.NoError(t, err)

	data, err := assets.Read(context.Background(), "assets/level.ron")
	require.NoError(t, err)
	assert.Equal(t, levelData, string(data))

	_, err = assets.Read(context.Background(), "assets/missing.ron")
	var fetchErr *wasm.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	_, err = assets.Read(context.Background(), "http://example.com/level.ron")
	var pathErr *AssetPathError
	assert.ErrorAs(t, err, &pathErr)
}

func TestOpenWithAssetBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(levelData))
	}))
	defer server.Close()

	s := openGame(t, func(cfg *config.HostConfig) {
		cfg.Assets.Root = ""
		cfg.Assets.BaseURL = server.URL
	})

	stepUntil(t, s, func() bool {
		return mailbox(t, s, wasmtest.FileSize) == uint32(len(levelData))
	})
}
