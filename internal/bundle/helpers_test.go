package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simple-gravity/gravity-host/internal/wasm/wasmtest"
)

const validManifest = `
name: simple-gravity
version: 0.2.3
wasm:
  file: simple_gravity_bg.wasm
window:
  width: 1280
  height: 720
crates:
  crate_version: 0.2.3
  sapp_jsutils_crate_version: 0.1.5
script: scripts/drop.yaml
author: gravity
license: MIT
`

const dropScript = `
events:
  - {frame: 0, type: resize, width: 1280, height: 720}
  - {frame: 2, type: mouse_down, x: 10, y: 20}
`

// writeBundle creates dir/name with a manifest, the game binary and a script.
func writeBundle(t *testing.T, dir, name, manifest string, binary []byte) string {
	t.Helper()

	bundleDir := filepath.Join(dir, name)
	for _, sub := range []string{"scripts", "assets"} {
		if err := os.MkdirAll(filepath.Join(bundleDir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}

	files := map[string][]byte{
		ManifestFile:             []byte(manifest),
		"scripts/drop.yaml":      []byte(dropScript),
		"assets/level.ron":       []byte("(bodies: 2)"),
		"simple_gravity_bg.wasm": binary,
	}
	for file, data := range files {
		if data == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(bundleDir, file), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	return bundleDir
}

func gameBinary() []byte {
	return wasmtest.Game().Encode()
}
