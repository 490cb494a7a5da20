// Package gravity describes the function-call boundary of the simple gravity
// game module: the functions the compiled binary exports to its host and the
// functions it expects the host to provide.
//
// NOTE: i32 is used for pointers and lengths because the module targets
// wasm32; every address into linear memory fits in 32 bits.
package gravity

import (
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Export names, as emitted by the binding generator.
const (
	ExportMemory = "memory"

	ExportMain             = "main"
	ExportFrame            = "frame"
	ExportResize           = "resize"
	ExportMouseMove        = "mouse_move"
	ExportRawMouseMove     = "raw_mouse_move"
	ExportMouseDown        = "mouse_down"
	ExportMouseUp          = "mouse_up"
	ExportMouseWheel       = "mouse_wheel"
	ExportKeyDown          = "key_down"
	ExportKeyPress         = "key_press"
	ExportKeyUp            = "key_up"
	ExportTouch            = "touch"
	ExportOnClipboardPaste = "on_clipboard_paste"
	ExportFileLoaded       = "file_loaded"
	ExportAllocateVecU8    = "allocate_vec_u8"

	ExportMacroquadAudioVersion = "macroquad_audio_crate_version"
	ExportQuadURLVersion        = "quad_url_crate_version"
	ExportSappJsutilsVersion    = "sapp_jsutils_crate_version"
	ExportCrateVersion          = "crate_version"

	ExportExnStore = "__wbindgen_exn_store"
	ExportStart    = "__wbindgen_start"
)

// Export is one entry of the export table.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType

	// Optional exports may be missing from a binary. Probes and binding
	// runtime internals depend on which crates were linked in.
	Optional bool
}

// Signature renders the export type in wasm text style, e.g. "(i32, i32) -> i32".
func (e Export) Signature() string {
	return FormatSignature(e.Params, e.Results)
}

// Matches reports whether params and results equal the declared types.
func (e Export) Matches(params, results []api.ValueType) bool {
	return equalTypes(e.Params, params) && equalTypes(e.Results, results)
}

var (
	i32 = api.ValueTypeI32
	f32 = api.ValueTypeF32
)

// Exports is the full export table of the game module, excluding memory.
var Exports = []Export{
	{Name: ExportMain, Params: types(i32, i32), Results: types(i32), Optional: true},
	{Name: ExportMacroquadAudioVersion, Results: types(i32), Optional: true},
	{Name: ExportQuadURLVersion, Results: types(i32), Optional: true},
	{Name: ExportSappJsutilsVersion, Results: types(i32), Optional: true},
	{Name: ExportFileLoaded, Params: types(i32)},
	{Name: ExportCrateVersion, Results: types(i32), Optional: true},
	{Name: ExportAllocateVecU8, Params: types(i32), Results: types(i32)},
	{Name: ExportOnClipboardPaste, Params: types(i32, i32)},
	{Name: ExportFrame},
	{Name: ExportMouseMove, Params: types(i32, i32)},
	{Name: ExportRawMouseMove, Params: types(i32, i32)},
	{Name: ExportMouseDown, Params: types(i32, i32, i32)},
	{Name: ExportMouseUp, Params: types(i32, i32, i32)},
	{Name: ExportMouseWheel, Params: types(i32, i32)},
	{Name: ExportKeyDown, Params: types(i32, i32, i32)},
	{Name: ExportKeyPress, Params: types(i32)},
	{Name: ExportKeyUp, Params: types(i32)},
	{Name: ExportResize, Params: types(i32, i32)},
	{Name: ExportTouch, Params: types(i32, i32, f32, f32)},
	{Name: ExportExnStore, Params: types(i32), Optional: true},
	{Name: ExportStart, Optional: true},
}

// VersionProbes lists the exports that report a linked crate version.
var VersionProbes = []string{
	ExportMacroquadAudioVersion,
	ExportQuadURLVersion,
	ExportSappJsutilsVersion,
	ExportCrateVersion,
}

// LookupExport finds an export by name.
func LookupExport(name string) (Export, bool) {
	for _, e := range Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// IsVersionProbe reports whether name is one of VersionProbes.
func IsVersionProbe(name string) bool {
	for _, p := range VersionProbes {
		if p == name {
			return true
		}
	}
	return false
}

// FormatSignature renders value types in wasm text style.
func FormatSignature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteByte(')')
	if len(results) > 0 {
		b.WriteString(" -> ")
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(r))
		}
	}
	return b.String()
}

func types(vt ...api.ValueType) []api.ValueType {
	return vt
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
