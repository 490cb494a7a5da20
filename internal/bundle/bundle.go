// Package bundle discovers and loads game bundles: a directory holding a
// manifest.yaml, the game binary, its assets and an optional input script.
package bundle

import (
	"time"

	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/simple-gravity/gravity-host/pkg/protocol"
)

// Bundle represents a loaded game bundle with its manifest and compiled module.
type Bundle struct {
	// Manifest is the parsed bundle metadata
	Manifest *Manifest

	// Compiled is the compiled and verified Wasm module
	Compiled *wasm.CompiledModule

	// Report is the export verification result of Compiled
	Report *bindings.Report

	// Script is the input script named by the manifest, if any
	Script *protocol.Script

	// LoadedAt is the timestamp when the bundle was loaded
	LoadedAt time.Time
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.Manifest.Name
}

// Version returns the bundle version.
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// AssetRoot returns the directory fs_load_file paths are resolved against.
func (b *Bundle) AssetRoot() string {
	return b.Manifest.AssetsPath()
}

// ExpectedCrates returns the crate versions the manifest pins, keyed by
// probe export name.
func (b *Bundle) ExpectedCrates() map[string]bindings.CrateVersion {
	return b.Manifest.crates
}
