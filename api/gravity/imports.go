package gravity

import (
	"github.com/tetratelabs/wazero/api"
)

// Host import module names.
const (
	ModuleEnv         = "env"
	ModuleWbg         = "wbg"
	ModulePlaceholder = "__wbindgen_placeholder__"
)

// Host import names the host implements. Any other import is satisfied with
// a headless stub that returns zero values.
const (
	ImportConsoleLog   = "console_log"
	ImportConsoleInfo  = "console_info"
	ImportConsoleWarn  = "console_warn"
	ImportConsoleError = "console_error"
	ImportConsoleDebug = "console_debug"

	ImportNow = "now"

	ImportSetClipboard   = "sapp_set_clipboard"
	ImportSetWindowTitle = "sapp_set_window_title"
	ImportSetCursor      = "sapp_set_cursor"

	ImportLoadFile      = "fs_load_file"
	ImportGetBufferSize = "fs_get_buffer_size"
	ImportTakeBuffer    = "fs_take_buffer"

	ImportObjectDropRef = "__wbindgen_object_drop_ref"
	ImportThrow         = "__wbindgen_throw"
)

// Import is a host function the module may import.
type Import struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Signature renders the import type in wasm text style.
func (i Import) Signature() string {
	return FormatSignature(i.Params, i.Results)
}

// Matches reports whether params and results equal the declared types.
func (i Import) Matches(params, results []api.ValueType) bool {
	return equalTypes(i.Params, params) && equalTypes(i.Results, results)
}

// Imports is the set of imports with a real host implementation.
var Imports = []Import{
	{Module: ModuleEnv, Name: ImportConsoleLog, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportConsoleInfo, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportConsoleWarn, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportConsoleError, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportConsoleDebug, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportNow, Results: types(api.ValueTypeF64)},
	{Module: ModuleEnv, Name: ImportSetClipboard, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportSetWindowTitle, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportSetCursor, Params: types(i32, i32)},
	{Module: ModuleEnv, Name: ImportLoadFile, Params: types(i32, i32), Results: types(i32)},
	{Module: ModuleEnv, Name: ImportGetBufferSize, Params: types(i32), Results: types(i32)},
	{Module: ModuleEnv, Name: ImportTakeBuffer, Params: types(i32, i32, i32)},
	{Module: ModuleWbg, Name: ImportObjectDropRef, Params: types(i32)},
	{Module: ModuleWbg, Name: ImportThrow, Params: types(i32, i32)},
	{Module: ModulePlaceholder, Name: ImportObjectDropRef, Params: types(i32)},
	{Module: ModulePlaceholder, Name: ImportThrow, Params: types(i32, i32)},
}

// LookupImport finds a host-implemented import.
func LookupImport(module, name string) (Import, bool) {
	for _, imp := range Imports {
		if imp.Module == module && imp.Name == name {
			return imp, true
		}
	}
	return Import{}, false
}
