package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Runtime manages the wazero runtime lifecycle.
// One Runtime serves every game session of the process.
type Runtime struct {
	// wazero runtime
	runtime wazero.Runtime

	// On-disk compilation cache, nil when CacheDir is empty.
	cache wazero.CompilationCache

	// Compiled module cache (key: module name/path -> value: compiled module)
	// This avoids recompiling the same Wasm binary multiple times
	modules sync.Map // map[string]*CompiledModule

	// Active module instances (for cleanup on shutdown)
	// key: instance ID -> value: *Instance
	instances sync.Map

	// IDs claimed by instantiations still in progress. Guarded by instMu,
	// which also serializes the limit check against them.
	instMu   sync.Mutex
	reserved map[string]struct{}

	// Host import modules instantiated so far
	// key: import module name -> set of provided function names
	hostMu      sync.Mutex
	hostModules map[string]map[string]bool

	// Implementations behind the host modules. The host modules are built
	// once, so every instance of this runtime shares them.
	host *HostFunctionsImpl

	// Configuration
	config *RuntimeConfig

	// Logger
	logger *zap.Logger

	// Shutdown management
	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limits for Wasm modules (in pages, 64KB each)
	// Default: 256 pages = 16MB max memory per module
	MemoryPages uint32

	// Enable debug logging for Wasm execution
	DebugEnabled bool

	// Compilation cache directory (for persistent caching)
	// If empty, uses in-memory caching only
	CacheDir string

	// Maximum number of concurrent instances
	MaxInstances int
}

// CompiledModule wraps a wazero.CompiledModule with metadata.
type CompiledModule struct {
	// wazero compiled module
	Module wazero.CompiledModule

	// Module metadata
	Name      string
	Source    string // File path, URL or identifier
	SizeBytes int64

	// Compilation timestamp
	CompiledAt int64
}

// NewRuntime creates and initializes a new wazero runtime.
// This should be called once during application startup.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	// Cancelling the context of a guest call interrupts it; frame timeouts
	// rely on this.
	rc := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithDebugInfoEnabled(config.DebugEnabled)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}

	var cache wazero.CompilationCache
	if config.CacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache '%s': %w", config.CacheDir, err)
		}
		cache = c
		rc = rc.WithCompilationCache(cache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)

	runtime := &Runtime{
		runtime:     r,
		cache:       cache,
		hostModules: make(map[string]map[string]bool),
		reserved:    make(map[string]struct{}),
		host:        NewHostFunctions(logger),
		config:      config,
		logger:      logger.With(zap.String("component", "wasm-runtime")),
		closed:      make(chan struct{}),
	}

	logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:  256, // 16MB
		DebugEnabled: false,
		CacheDir:     "",
		MaxInstances: 100,
	}
}

// Config returns the configuration the runtime was created with.
func (r *Runtime) Config() *RuntimeConfig {
	return r.config
}

// Host returns the host function implementations shared by all instances.
func (r *Runtime) Host() *HostFunctionsImpl {
	return r.host
}

// Close gracefully shuts down the runtime.
// Safe to call multiple times (idempotent).
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Shutting down Wasm runtime")

		// Close all active instances first
		r.instances.Range(func(key, value interface{}) bool {
			if inst, ok := value.(interface{ Close(context.Context) error }); ok {
				if closeErr := inst.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close instance",
						zap.String("instance_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			return true
		})

		// Close the runtime (closes compiled modules)
		err = r.runtime.Close(ctx)

		if r.cache != nil {
			if cacheErr := r.cache.Close(ctx); cacheErr != nil && err == nil {
				err = cacheErr
			}
		}

		close(r.closed)
		r.logger.Info("Wasm runtime shutdown complete")
	})

	return err
}

// GetCompiledModule retrieves a compiled module from cache.
func (r *Runtime) GetCompiledModule(name string) (*CompiledModule, bool) {
	if val, ok := r.modules.Load(name); ok {
		if mod, ok := val.(*CompiledModule); ok {
			return mod, true
		}
	}
	return nil, false
}

// StoreCompiledModule stores a compiled module in cache.
func (r *Runtime) StoreCompiledModule(module *CompiledModule) {
	r.modules.Store(module.Name, module)
}

// GetInstance retrieves an active instance.
func (r *Runtime) GetInstance(instanceID string) (interface{}, bool) {
	return r.instances.Load(instanceID)
}

// StoreInstance stores an active instance and releases its reservation.
func (r *Runtime) StoreInstance(instanceID string, instance interface{}) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	delete(r.reserved, instanceID)
	r.instances.Store(instanceID, instance)
}

// reserveInstance claims instanceID for an instantiation in progress. The
// claim counts against MaxInstances until StoreInstance or
// releaseInstance.
func (r *Runtime) reserveInstance(instanceID string) error {
	r.instMu.Lock()
	defer r.instMu.Unlock()

	if _, ok := r.reserved[instanceID]; ok {
		return &InstanceExistsError{InstanceID: instanceID}
	}
	if _, ok := r.instances.Load(instanceID); ok {
		return &InstanceExistsError{InstanceID: instanceID}
	}
	if max := r.config.MaxInstances; max > 0 && r.InstanceCount()+len(r.reserved) >= max {
		return &InstanceLimitError{Max: max}
	}
	r.reserved[instanceID] = struct{}{}
	return nil
}

// releaseInstance drops a reservation whose instantiation failed.
func (r *Runtime) releaseInstance(instanceID string) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	delete(r.reserved, instanceID)
}

// DeleteInstance removes an instance from tracking.
func (r *Runtime) DeleteInstance(instanceID string) {
	r.instances.Delete(instanceID)
}

// InstanceCount returns the number of tracked instances.
func (r *Runtime) InstanceCount() int {
	n := 0
	r.instances.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
