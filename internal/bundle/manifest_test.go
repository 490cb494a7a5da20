package bundle

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/simple-gravity/gravity-host/internal/bindings"
)

func TestParseManifest_Valid(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "simple-gravity", validManifest, gameBinary())

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Name != "simple-gravity" {
		t.Errorf("expected name 'simple-gravity', got '%s'", manifest.Name)
	}

	if manifest.Version != "0.2.3" {
		t.Errorf("expected version '0.2.3', got '%s'", manifest.Version)
	}

	if manifest.Window.Width != 1280 || manifest.Window.Height != 720 {
		t.Errorf("expected window 1280x720, got %dx%d", manifest.Window.Width, manifest.Window.Height)
	}

	if manifest.WasmPath() != filepath.Join(dir, "simple_gravity_bg.wasm") {
		t.Errorf("unexpected wasm path: %s", manifest.WasmPath())
	}

	if manifest.AssetsPath() != dir {
		t.Errorf("unexpected assets path: %s", manifest.AssetsPath())
	}

	if manifest.ScriptPath() != filepath.Join(dir, "scripts", "drop.yaml") {
		t.Errorf("unexpected script path: %s", manifest.ScriptPath())
	}

	want := bindings.CrateVersion{Minor: 2, Patch: 3}
	if got := manifest.crates["crate_version"]; got != want {
		t.Errorf("expected crate_version %v, got %v", want, got)
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "nonexistent"))
	if err == nil {
		t.Fatal("ParseManifest() should fail for nonexistent directory")
	}

	if _, ok := err.(*ManifestNotFoundError); !ok {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "broken", "name: [unterminated", gameBinary())

	_, err := ParseManifest(dir)
	if _, ok := err.(*ManifestParseError); !ok {
		t.Errorf("expected ManifestParseError, got %T (%v)", err, err)
	}
}

func TestParseManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{
			name:     "missing name",
			manifest: "version: 1.0.0\nwasm: {file: simple_gravity_bg.wasm}\n",
			field:    "name",
		},
		{
			name:     "invalid name",
			manifest: "name: Simple Gravity\nversion: 1.0.0\nwasm: {file: simple_gravity_bg.wasm}\n",
			field:    "name",
		},
		{
			name:     "missing version",
			manifest: "name: game\nwasm: {file: simple_gravity_bg.wasm}\n",
			field:    "version",
		},
		{
			name:     "missing wasm file",
			manifest: "name: game\nversion: 1.0.0\n",
			field:    "wasm.file",
		},
		{
			name:     "negative window",
			manifest: "name: game\nversion: 1.0.0\nwasm: {file: simple_gravity_bg.wasm}\nwindow: {width: -1}\n",
			field:    "window",
		},
		{
			name:     "unknown probe",
			manifest: "name: game\nversion: 1.0.0\nwasm: {file: simple_gravity_bg.wasm}\ncrates: {gfx_crate_version: 1.0.0}\n",
			field:    "crates",
		},
		{
			name:     "bad crate version",
			manifest: "name: game\nversion: 1.0.0\nwasm: {file: simple_gravity_bg.wasm}\ncrates: {crate_version: latest}\n",
			field:    "crates",
		},
		{
			name:     "missing script",
			manifest: "name: game\nversion: 1.0.0\nwasm: {file: simple_gravity_bg.wasm}\nscript: scripts/none.yaml\n",
			field:    "script",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeBundle(t, t.TempDir(), "game", tt.manifest, gameBinary())

			_, err := ParseManifest(dir)
			if err == nil {
				t.Fatal("ParseManifest() should fail")
			}

			valErr, ok := err.(*ManifestValidationError)
			if !ok {
				t.Fatalf("expected ManifestValidationError, got %T (%v)", err, err)
			}

			if valErr.Field != tt.field {
				t.Errorf("expected field '%s', got '%s'", tt.field, valErr.Field)
			}
		})
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "game", "name: game\nversion: 1.0.0\nwasm: {file: missing.wasm}\n", gameBinary())

	_, err := ParseManifest(dir)
	wasmErr, ok := err.(*WasmNotFoundError)
	if !ok {
		t.Fatalf("expected WasmNotFoundError, got %T (%v)", err, err)
	}

	if wasmErr.WasmFile != "missing.wasm" {
		t.Errorf("expected wasm file 'missing.wasm', got '%s'", wasmErr.WasmFile)
	}

	if !strings.Contains(err.Error(), "missing.wasm") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestManifest_CustomAssets(t *testing.T) {
	m := &Manifest{dir: "/games/orbit", Assets: "data"}
	if m.AssetsPath() != filepath.Join("/games/orbit", "data") {
		t.Errorf("unexpected assets path: %s", m.AssetsPath())
	}

	if m.ScriptPath() != "" {
		t.Errorf("expected empty script path, got %s", m.ScriptPath())
	}
}
