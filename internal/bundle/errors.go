package bundle

import (
	"fmt"
)

// ManifestNotFoundError occurs when manifest.yaml is not found in a directory.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when manifest.yaml cannot be parsed as valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest at '%s': %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when manifest.yaml fails validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest validation failed at '%s': %s (field: %s)",
			e.Path, e.Message, e.Field)
	}
	return fmt.Sprintf("manifest validation failed at '%s': %s", e.Path, e.Message)
}

// WasmNotFoundError occurs when the Wasm file referenced in manifest doesn't exist.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("Wasm file '%s' not found (referenced in manifest '%s')",
		e.WasmFile, e.ManifestPath)
}

// BundleLoadError occurs when bundle loading fails.
type BundleLoadError struct {
	BundleName string
	Err        error
}

func (e *BundleLoadError) Error() string {
	return fmt.Sprintf("failed to load bundle '%s': %v", e.BundleName, e.Err)
}

func (e *BundleLoadError) Unwrap() error {
	return e.Err
}

// BundleNotFoundError occurs when a bundle is not found in the registry.
type BundleNotFoundError struct {
	BundleName string
}

func (e *BundleNotFoundError) Error() string {
	return fmt.Sprintf("bundle '%s' not found", e.BundleName)
}

// BundleAlreadyRegisteredError occurs when attempting to register a duplicate bundle.
type BundleAlreadyRegisteredError struct {
	BundleName string
}

func (e *BundleAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("bundle '%s' is already registered", e.BundleName)
}

// NoBundlesFoundError occurs when no bundles are found in the configured paths.
type NoBundlesFoundError struct {
	Paths []string
}

func (e *NoBundlesFoundError) Error() string {
	return fmt.Sprintf("no bundles found in paths: %v", e.Paths)
}
