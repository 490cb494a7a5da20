package bundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"go.uber.org/zap"
)

// Manager manages bundle lifecycle.
type Manager struct {
	paths    []string
	loader   *Loader
	registry *Registry
	initr    *bindings.Initializer
	logger   *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new bundle manager for the given search paths.
func NewManager(paths []string, runtime *wasm.Runtime, logger *zap.Logger) *Manager {
	return &Manager{
		paths:    paths,
		loader:   NewLoader(runtime, logger),
		registry: NewRegistry(logger),
		initr:    bindings.NewInitializer(runtime, logger),
		logger:   logger.With(zap.String("component", "bundle-manager")),
	}
}

// LoadAll discovers and loads all bundles from the search paths. Bundles
// that fail to load are logged and skipped.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("bundles already loaded")
	}

	m.logger.Info("Loading bundles",
		zap.Strings("paths", m.paths),
	)

	// Discover bundles
	bundles, err := m.loader.DiscoverBundles(ctx, m.paths)
	if len(bundles) == 0 {
		// No bundles at all is not fatal; a game can still be run by path.
		var none *NoBundlesFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No bundles found in configured paths",
				zap.Strings("paths", m.paths),
				zap.Error(err),
			)
			m.loaded = true
			return nil
		}
		return err
	}
	if err != nil {
		m.logger.Warn("Skipped bundles that failed to load", zap.Error(err))
	}

	// Register all bundles
	for _, bundle := range bundles {
		if err := m.registry.Register(bundle); err != nil {
			m.logger.Error("Failed to register bundle",
				zap.String("name", bundle.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Bundles loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// Get retrieves a bundle by name.
func (m *Manager) Get(name string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, ok := m.registry.Get(name)
	if !ok {
		return nil, &BundleNotFoundError{BundleName: name}
	}

	return bundle, nil
}

// Open instantiates a bundle's game. opts.DefaultPath is ignored; the
// bundle's compiled module is used.
func (m *Manager) Open(ctx context.Context, name string, opts *bindings.Options) (*bindings.InitOutput, error) {
	bundle, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	return m.initr.Init(ctx, bindings.FromCompiled(bundle.Compiled), opts)
}

// Registry returns the bundle registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether bundles have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
