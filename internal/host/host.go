// Package host drives initialized games: it owns the runtime, opens
// sessions for game binaries and bundles, and runs their frame loops.
package host

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/bundle"
	"github.com/simple-gravity/gravity-host/internal/config"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/simple-gravity/gravity-host/pkg/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Host struct {
	cfg     *config.HostConfig
	logger  *zap.Logger
	runtime *wasm.Runtime
	initr   *bindings.Initializer
	bundles *bundle.Manager
	client  *http.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHost(ctx context.Context, cfg *config.HostConfig, logger *zap.Logger) (*Host, error) {
	// Initialize Wasm runtime.
	runtime, err := wasm.NewRuntime(ctx, logger, cfg.Wasm.RuntimeConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	logger.Info("Host initialized",
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
		zap.Duration("execution_timeout", cfg.Wasm.ExecutionTimeout),
	)

	return &Host{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "host")),
		runtime:  runtime,
		initr:    bindings.NewInitializer(runtime, logger),
		bundles:  bundle.NewManager(cfg.BundlePaths, runtime, logger),
		client:   http.DefaultClient,
		sessions: make(map[string]*Session),
	}, nil
}

// Runtime returns the Wasm runtime shared by all sessions.
func (h *Host) Runtime() *wasm.Runtime {
	return h.runtime
}

// Initializer returns the initializer sessions are opened with.
func (h *Host) Initializer() *bindings.Initializer {
	return h.initr
}

// Bundles returns the bundle manager, loading the bundle paths on first use.
func (h *Host) Bundles(ctx context.Context) (*bundle.Manager, error) {
	if !h.bundles.IsLoaded() {
		if err := h.bundles.LoadAll(ctx); err != nil {
			return nil, err
		}
	}
	return h.bundles, nil
}

// Open initializes the game behind input with the host configuration and
// returns a session ready to run.
func (h *Host) Open(ctx context.Context, input bindings.InitInput) (*Session, error) {
	expected, err := ParseCrates(h.cfg.Crates)
	if err != nil {
		return nil, err
	}

	var script *protocol.Script
	if h.cfg.Script != "" {
		if script, err = protocol.LoadScript(h.cfg.Script); err != nil {
			return nil, err
		}
	}

	cfg := h.sessionConfig()
	cfg.Expected = expected
	cfg.Script = script

	return h.open(ctx, cfg, func(opts *bindings.Options) (*bindings.InitOutput, error) {
		opts.DefaultPath = h.cfg.Module
		return h.initr.Init(ctx, input, opts)
	})
}

// OpenBundle starts a session for a loaded bundle. The manifest's window,
// asset root, crate pins and script take precedence over the host
// configuration.
func (h *Host) OpenBundle(ctx context.Context, name string) (*Session, error) {
	bundles, err := h.Bundles(ctx)
	if err != nil {
		return nil, err
	}
	b, err := bundles.Get(name)
	if err != nil {
		return nil, err
	}

	expected, err := ParseCrates(h.cfg.Crates)
	if err != nil {
		return nil, err
	}
	for probe, v := range b.ExpectedCrates() {
		expected[probe] = v
	}

	cfg := h.sessionConfig()
	cfg.Expected = expected
	cfg.Script = b.Script
	cfg.Assets = config.AssetsConfig{Root: b.AssetRoot()}
	if w := b.Manifest.Window; w.Width > 0 && w.Height > 0 {
		cfg.Window.Width, cfg.Window.Height = w.Width, w.Height
	}
	if b.Manifest.Window.Title != "" {
		cfg.Window.Title = b.Manifest.Window.Title
	}

	return h.open(ctx, cfg, func(opts *bindings.Options) (*bindings.InitOutput, error) {
		return bundles.Open(ctx, name, opts)
	})
}

func (h *Host) sessionConfig() SessionConfig {
	return SessionConfig{
		Window:     h.cfg.Window,
		Frame:      h.cfg.Frame,
		Assets:     h.cfg.Assets,
		QueueSize:  h.cfg.QueueSize,
		HTTPClient: h.client,
	}
}

func (h *Host) open(ctx context.Context, cfg SessionConfig, initFn func(*bindings.Options) (*bindings.InitOutput, error)) (*Session, error) {
	session, err := newSession(cfg, h.logger)
	if err != nil {
		return nil, err
	}

	out, err := initFn(&bindings.Options{
		Imports:    session,
		HTTPClient: h.client,
		Timeout:    h.cfg.Wasm.ExecutionTimeout,
	})
	if err != nil {
		session.cancelLoad()
		return nil, err
	}
	session.attach(out)

	if _, err := session.CheckVersions(ctx); err != nil {
		return nil, multierr.Append(err, session.Close(ctx))
	}

	session.onClose = h.forget
	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.mu.Unlock()

	h.logger.Info("Session opened",
		zap.String("instance", session.ID()),
		zap.String("module", out.Module().Name),
		zap.String("assets", session.assets.String()),
	)
	return session, nil
}

func (h *Host) forget(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
}

// Sessions returns the IDs of open sessions, sorted.
func (h *Host) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every open session, then the runtime.
func (h *Host) Close(ctx context.Context) error {
	h.logger.Info("Shutting down host")

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.Close(ctx))
	}

	// Shutdown Wasm runtime.
	if rerr := h.runtime.Close(ctx); rerr != nil {
		h.logger.Error("Failed to shutdown Wasm runtime", zap.Error(rerr))
		err = multierr.Append(err, rerr)
	}

	if err == nil {
		h.logger.Info("Host shutdown complete")
	}
	return err
}

// ParseCrates converts configured crate pins, probe name to "x.y.z", into
// versions. Unknown probe names are errors.
func ParseCrates(crates map[string]string) (map[string]bindings.CrateVersion, error) {
	versions := make(map[string]bindings.CrateVersion, len(crates))
	for probe, s := range crates {
		if !gravity.IsVersionProbe(probe) {
			return nil, fmt.Errorf("unknown version probe: %s", probe)
		}
		v, err := bindings.ParseCrateVersion(s)
		if err != nil {
			return nil, fmt.Errorf("crate %s: %w", probe, err)
		}
		versions[probe] = v
	}
	return versions, nil
}
