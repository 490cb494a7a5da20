package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/wasm/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, game *wasmtest.Module) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simple_gravity_bg.wasm")
	require.NoError(t, os.WriteFile(path, game.Encode(), 0644))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"gravity-host", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestInputFromArg(t *testing.T) {
	assert.Nil(t, inputFromArg(""))
	assert.Equal(t, "reader stdin", inputFromArg("-").String())
	assert.Contains(t, inputFromArg("https://example.com/game.wasm").String(), "https://example.com/game.wasm")
	assert.Contains(t, inputFromArg("games/orbit.wasm").String(), "games/orbit.wasm")
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := newLogger("loud")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	path := writeModule(t, wasmtest.Game())

	out, err := runApp(t, "inspect", "--imports", path)
	require.NoError(t, err)
	assert.Contains(t, out, "frame")
	assert.Contains(t, out, "on_clipboard_paste")
	assert.Contains(t, out, "memory exported, ok")
	assert.Contains(t, out, "glClear")
}

func TestInspectMismatch(t *testing.T) {
	path := writeModule(t, wasmtest.Game().Without("resize"))

	out, err := runApp(t, "inspect", path)
	var mismatch *bindings.SignatureMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"resize"}, mismatch.Missing)
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "does not match the export table")
}

func TestVersions(t *testing.T) {
	path := writeModule(t, wasmtest.Game())

	out, err := runApp(t, "versions", path)
	require.NoError(t, err)
	assert.Contains(t, out, "crate_version")
	assert.Contains(t, out, "0.2.3")
	assert.Contains(t, out, "0.1.5")
}

func TestRunMaxFrames(t *testing.T) {
	path := writeModule(t, wasmtest.Game())

	_, err := runApp(t, "run", "--max-frames", "3", "--fps", "500", path)
	require.NoError(t, err)
}

func TestBundlesEmpty(t *testing.T) {
	t.Setenv("GRAVITY_BUNDLE_PATHS", filepath.Join(t.TempDir(), "none"))

	_, err := runApp(t, "bundles")
	require.NoError(t, err)
}

func TestRenderVersions(t *testing.T) {
	var out bytes.Buffer
	err := renderVersions(&out, map[string]bindings.CrateVersion{
		"quad_url_crate_version": {Minor: 1, Patch: 1},
		"crate_version":          {Minor: 2, Patch: 3},
	})
	require.NoError(t, err)

	text := out.String()
	assert.Less(t, bytes.Index(out.Bytes(), []byte("crate_version")), bytes.Index(out.Bytes(), []byte("quad_url")))
	assert.Contains(t, text, "0.1.1")
}
