package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/simple-gravity/gravity-host/internal/bindings"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name that marks a bundle directory.
const ManifestFile = "manifest.yaml"

// defaultAssetsDir is used when the manifest names no asset root. Games
// request files relative to the bundle root, like a page requests them
// relative to its URL.
const defaultAssetsDir = "."

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Manifest represents the bundle manifest.yaml structure.
//
//	name: simple-gravity
//	version: 0.2.3
//	wasm:
//	  file: simple_gravity_bg.wasm
//	window: {width: 1280, height: 720}
//	crates:
//	  crate_version: 0.2.3
//	script: scripts/drop.yaml
type Manifest struct {
	Name    string            `yaml:"name"`
	Version string            `yaml:"version"`
	Wasm    WasmConfig        `yaml:"wasm"`
	Window  WindowConfig      `yaml:"window"`
	Assets  string            `yaml:"assets"`
	Crates  map[string]string `yaml:"crates"`
	Script  string            `yaml:"script"`
	Author  string            `yaml:"author"`
	License string            `yaml:"license"`

	// Internal fields
	dir    string // Directory containing manifest
	crates map[string]bindings.CrateVersion
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// WindowConfig overrides the host's default canvas size.
type WindowConfig struct {
	Width  int32  `yaml:"width"`
	Height int32  `yaml:"height"`
	Title  string `yaml:"title"`
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	// Validate manifest
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields and resolves crate expectations.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}
	if !namePattern.MatchString(m.Name) {
		return m.invalid("name", fmt.Sprintf("invalid name %q (lowercase letters, digits, '-' and '_')", m.Name))
	}

	if m.Version == "" {
		return m.invalid("version", "version is required")
	}

	if m.Wasm.File == "" {
		return m.invalid("wasm.file", "wasm.file is required")
	}

	if m.Window.Width < 0 || m.Window.Height < 0 {
		return m.invalid("window", fmt.Sprintf("window size must not be negative, got %dx%d", m.Window.Width, m.Window.Height))
	}

	probes := make([]string, 0, len(m.Crates))
	for probe := range m.Crates {
		probes = append(probes, probe)
	}
	sort.Strings(probes)

	m.crates = make(map[string]bindings.CrateVersion, len(m.Crates))
	for _, probe := range probes {
		if !gravity.IsVersionProbe(probe) {
			return m.invalid("crates", fmt.Sprintf("unknown version probe: %s", probe))
		}
		v, err := bindings.ParseCrateVersion(m.Crates[probe])
		if err != nil {
			return m.invalid("crates", err.Error())
		}
		m.crates[probe] = v
	}

	// Validate Wasm file exists
	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	if m.Script != "" {
		if _, err := os.Stat(m.ScriptPath()); err != nil {
			return m.invalid("script", fmt.Sprintf("script not readable: %v", err))
		}
	}

	return nil
}

func (m *Manifest) invalid(field, msg string) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: msg,
	}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// AssetsPath returns the directory fs_load_file paths are resolved against.
func (m *Manifest) AssetsPath() string {
	if m.Assets == "" {
		return filepath.Join(m.dir, defaultAssetsDir)
	}
	return filepath.Join(m.dir, m.Assets)
}

// ScriptPath returns the input script path, or "" if the bundle has none.
func (m *Manifest) ScriptPath() string {
	if m.Script == "" {
		return ""
	}
	return filepath.Join(m.dir, m.Script)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
