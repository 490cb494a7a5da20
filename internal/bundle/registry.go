package bundle

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded bundles.
type Registry struct {
	sync.RWMutex
	bundles map[string]*Bundle // name -> bundle
	logger  *zap.Logger
}

// NewRegistry creates a new bundle registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		bundles: make(map[string]*Bundle),
		logger:  logger.With(zap.String("component", "bundle-registry")),
	}
}

// Register adds a bundle to the registry.
func (r *Registry) Register(bundle *Bundle) error {
	r.Lock()
	defer r.Unlock()

	name := bundle.Manifest.Name

	// Check for duplicates
	if _, exists := r.bundles[name]; exists {
		return &BundleAlreadyRegisteredError{BundleName: name}
	}

	r.bundles[name] = bundle

	r.logger.Info("Bundle registered",
		zap.String("name", name),
		zap.String("version", bundle.Manifest.Version),
	)

	return nil
}

// Get retrieves a bundle by name.
func (r *Registry) Get(name string) (*Bundle, bool) {
	r.RLock()
	defer r.RUnlock()

	bundle, ok := r.bundles[name]
	return bundle, ok
}

// List returns all registered bundles sorted by name.
func (r *Registry) List() []*Bundle {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Bundle, 0, len(r.bundles))
	for _, bundle := range r.bundles {
		result = append(result, bundle)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Unregister removes a bundle from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.bundles[name]; !ok {
		return
	}
	delete(r.bundles, name)

	r.logger.Info("Bundle unregistered", zap.String("name", name))
}

// Count returns the number of registered bundles.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.bundles)
}
