package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/config"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/simple-gravity/gravity-host/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by Post when the event queue is at capacity.
	ErrQueueFull = errors.New("event queue full")
	// ErrSessionClosed is returned for calls on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// SessionConfig describes how a session drives its game.
type SessionConfig struct {
	Window    config.WindowConfig
	Frame     config.FrameConfig
	Assets    config.AssetsConfig
	QueueSize int

	// Expected crate versions keyed by probe export name.
	Expected map[string]bindings.CrateVersion

	// Script replays recorded input. May be nil.
	Script *protocol.Script

	HTTPClient *http.Client
}

// VersionMismatch is a crate whose reported version differs from the
// expected one. Got is zero when the binary lacks the probe.
type VersionMismatch struct {
	Probe   string
	Want    bindings.CrateVersion
	Got     bindings.CrateVersion
	Missing bool
}

type loadState struct {
	path string
	data []byte
	err  error
	done bool
}

var _ wasm.Imports = (*Session)(nil)

// Session runs one game instance. Step and Run must not be called
// concurrently; Post and Paste may be called from any goroutine.
type Session struct {
	cfg    SessionConfig
	logger *zap.Logger
	guest  *zap.Logger
	assets assetSource
	out    *bindings.InitOutput

	events chan protocol.Event
	start  time.Time
	frame  atomic.Uint64
	step   sync.Mutex

	loadCtx    context.Context
	cancelLoad context.CancelFunc
	loads      sync.WaitGroup

	mu        sync.Mutex
	files     map[uint32]*loadState
	nextFile  uint32
	completed []uint32
	clipboard string
	title     string
	cursor    string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	onClose   func(*Session)
}

func newSession(cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", cfg.QueueSize)
	}

	assets, err := newAssetSource(cfg.Assets.Root, cfg.Assets.BaseURL, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}

	loadCtx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:        cfg,
		logger:     logger,
		guest:      logger.Named("guest"),
		assets:     assets,
		events:     make(chan protocol.Event, cfg.QueueSize),
		start:      time.Now(),
		loadCtx:    loadCtx,
		cancelLoad: cancel,
		files:      make(map[uint32]*loadState),
		nextFile:   1,
		title:      cfg.Window.Title,
	}, nil
}

// attach binds the initialized game to the session and queues the initial
// canvas size.
func (s *Session) attach(out *bindings.InitOutput) {
	s.out = out
	s.logger = s.logger.With(zap.String("instance", out.Instance().ID))
	if s.cfg.Window.Width > 0 && s.cfg.Window.Height > 0 {
		s.events <- protocol.Resize{Width: s.cfg.Window.Width, Height: s.cfg.Window.Height}
	}
}

// Output returns the initialized game.
func (s *Session) Output() *bindings.InitOutput {
	return s.out
}

// ID returns the instance ID of the game.
func (s *Session) ID() string {
	return s.out.Instance().ID
}

// Frame returns the number of completed frames.
func (s *Session) Frame() uint64 {
	return s.frame.Load()
}

// Clipboard returns the text the game last copied.
func (s *Session) Clipboard() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipboard
}

// Title returns the current window title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Cursor returns the cursor icon the game last requested.
func (s *Session) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Post queues an input event for the next frame.
func (s *Session) Post(ev protocol.Event) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Paste queues text to be delivered through on_clipboard_paste.
func (s *Session) Paste(text string) error {
	return s.Post(protocol.Paste{Text: text})
}

// CheckVersions compares the crate versions the game reports with the
// expected ones and logs every mismatch.
func (s *Session) CheckVersions(ctx context.Context) ([]VersionMismatch, error) {
	if len(s.cfg.Expected) == 0 {
		return nil, nil
	}

	reported, err := s.out.Versions(ctx)
	if err != nil {
		return nil, err
	}

	var mismatches []VersionMismatch
	for probe, want := range s.cfg.Expected {
		got, ok := reported[probe]
		if ok && got == want {
			continue
		}
		m := VersionMismatch{Probe: probe, Want: want, Got: got, Missing: !ok}
		mismatches = append(mismatches, m)
		if m.Missing {
			s.logger.Warn("Crate version probe missing",
				zap.String("probe", probe), zap.Stringer("want", want))
		} else {
			s.logger.Warn("Crate version mismatch",
				zap.String("probe", probe), zap.Stringer("want", want), zap.Stringer("got", got))
		}
	}
	return mismatches, nil
}

// Step delivers finished file loads, script events and queued events in
// FIFO order, then advances the game by one frame.
func (s *Session) Step(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.step.Lock()
	defer s.step.Unlock()

	if err := s.deliverFiles(ctx); err != nil {
		return err
	}

	frame := s.frame.Load()
	if s.cfg.Script != nil {
		for _, ev := range s.cfg.Script.Due(frame) {
			if err := s.dispatch(ctx, ev); err != nil {
				return err
			}
		}
	}

	for drained := false; !drained; {
		select {
		case ev := <-s.events:
			if err := s.dispatch(ctx, ev); err != nil {
				return err
			}
		default:
			drained = true
		}
	}

	if err := s.out.Frame(ctx); err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	s.frame.Add(1)
	return nil
}

// Run drives frames at the configured rate until ctx is cancelled or the
// frame limit is reached. Events decoded from feed, one JSON record per
// line, are queued as they arrive. A nil feed disables the pump.
func (s *Session) Run(ctx context.Context, feed io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if feed != nil {
		lines := readLines(ctx, feed)
		g.Go(func() error {
			return s.pump(ctx, lines)
		})
	}
	g.Go(func() error {
		defer cancel()
		return s.loop(ctx)
	})

	err := g.Wait()
	s.logger.Info("Session stopped", zap.Uint64("frames", s.Frame()))
	return err
}

func (s *Session) loop(ctx context.Context) error {
	interval := s.cfg.Frame.Interval()
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if limit := s.cfg.Frame.MaxFrames; limit > 0 && s.Frame() >= limit {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
}

// pump queues decoded events, waiting for room instead of dropping them.
func (s *Session) pump(ctx context.Context, lines <-chan []byte) error {
	for {
		var line []byte
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		var rec protocol.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.logger.Warn("Skipping malformed event", zap.ByteString("line", line), zap.Error(err))
			continue
		}
		ev, err := rec.Event()
		if err != nil {
			s.logger.Warn("Skipping invalid event", zap.ByteString("line", line), zap.Error(err))
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// readLines scans r on its own goroutine, since a blocked Read cannot be
// cancelled. The goroutine exits at EOF or once ctx is done and the next
// line arrives.
func readLines(ctx context.Context, r io.Reader) <-chan []byte {
	lines := make(chan []byte)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			b := scanner.Bytes()
			if len(b) == 0 {
				continue
			}
			line := make([]byte, len(b))
			copy(line, b)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (s *Session) deliverFiles(ctx context.Context) error {
	s.mu.Lock()
	ids := s.completed
	s.completed = nil
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		state := s.files[id]
		if state != nil && state.err != nil {
			delete(s.files, id)
		}
		s.mu.Unlock()

		if state != nil && state.err != nil {
			idx := s.out.Instance().Heap().Add(state.err)
			s.logger.Warn("File load failed",
				zap.Uint32("handle", id),
				zap.String("path", state.path),
				zap.Uint32("heap_index", idx),
				zap.Error(state.err))
		}
		if err := s.out.FileLoaded(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Close stops pending loads and releases the game. It is safe to call
// more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancelLoad()
		s.loads.Wait()
		if s.out != nil {
			s.closeErr = s.out.Close(ctx)
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	return s.closeErr
}

// The methods below implement wasm.Imports.

func (s *Session) Log(level wasm.LogLevel, msg string) {
	switch level {
	case wasm.LogDebug:
		s.guest.Debug(msg)
	case wasm.LogWarn:
		s.guest.Warn(msg)
	case wasm.LogError:
		s.guest.Error(msg)
	default:
		s.guest.Info(msg)
	}
}

func (s *Session) Now() float64 {
	return time.Since(s.start).Seconds()
}

func (s *Session) SetClipboard(text string) {
	s.mu.Lock()
	s.clipboard = text
	s.mu.Unlock()
}

func (s *Session) SetWindowTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

func (s *Session) SetCursor(cursor string) {
	s.mu.Lock()
	s.cursor = cursor
	s.mu.Unlock()
}

func (s *Session) LoadFile(path string) uint32 {
	s.mu.Lock()
	id := s.nextFile
	s.nextFile++
	state := &loadState{path: path}
	s.files[id] = state
	s.mu.Unlock()

	s.logger.Debug("Loading file", zap.Uint32("handle", id), zap.String("path", path))

	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		data, err := s.assets.Read(s.loadCtx, path)

		s.mu.Lock()
		state.data, state.err, state.done = data, err, true
		s.completed = append(s.completed, id)
		s.mu.Unlock()
	}()
	return id
}

func (s *Session) FileSize(id uint32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.files[id]
	if !ok || !state.done || state.err != nil {
		return -1
	}
	return int32(len(state.data))
}

func (s *Session) TakeFile(id uint32) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.files[id]
	if !ok || !state.done || state.err != nil {
		return nil, false
	}
	delete(s.files, id)
	return state.data, true
}
