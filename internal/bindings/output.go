package bindings

import (
	"context"
	"time"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/tetratelabs/wazero/api"
)

// InitOutput is an initialized game instance. It exposes the linear memory
// and one method per export. Methods are not safe for concurrent use; a
// guest runs one call at a time.
type InitOutput struct {
	instance *wasm.Instance
	compiled *wasm.CompiledModule
	report   *Report
	timeout  time.Duration
}

func (o *InitOutput) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	return o.instance.CallWithTimeout(ctx, o.timeout, name, params...)
}

func (o *InitOutput) callI32(ctx context.Context, name string, params ...uint64) (int32, error) {
	res, err := o.call(ctx, name, params...)
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(res[0]), nil
}

func i32(v int32) uint64 { return api.EncodeI32(v) }

// Memory returns the guest's linear memory.
func (o *InitOutput) Memory() *wasm.Memory {
	return o.instance.Memory()
}

// Instance returns the underlying instance.
func (o *InitOutput) Instance() *wasm.Instance {
	return o.instance
}

// Module returns the compiled module the instance was created from.
func (o *InitOutput) Module() *wasm.CompiledModule {
	return o.compiled
}

// Report returns the verification report of the module.
func (o *InitOutput) Report() *Report {
	return o.report
}

// Main calls main(argc, argv).
func (o *InitOutput) Main(ctx context.Context, argc, argv int32) (int32, error) {
	return o.callI32(ctx, gravity.ExportMain, i32(argc), i32(argv))
}

// Frame advances the game by one frame.
func (o *InitOutput) Frame(ctx context.Context) error {
	_, err := o.call(ctx, gravity.ExportFrame)
	return err
}

// Resize reports a new canvas size.
func (o *InitOutput) Resize(ctx context.Context, width, height int32) error {
	_, err := o.call(ctx, gravity.ExportResize, i32(width), i32(height))
	return err
}

// MouseMove reports the cursor position.
func (o *InitOutput) MouseMove(ctx context.Context, x, y int32) error {
	_, err := o.call(ctx, gravity.ExportMouseMove, i32(x), i32(y))
	return err
}

// RawMouseMove reports relative mouse motion.
func (o *InitOutput) RawMouseMove(ctx context.Context, dx, dy int32) error {
	_, err := o.call(ctx, gravity.ExportRawMouseMove, i32(dx), i32(dy))
	return err
}

// MouseDown reports a button press at x, y.
func (o *InitOutput) MouseDown(ctx context.Context, x, y, button int32) error {
	_, err := o.call(ctx, gravity.ExportMouseDown, i32(x), i32(y), i32(button))
	return err
}

// MouseUp reports a button release at x, y.
func (o *InitOutput) MouseUp(ctx context.Context, x, y, button int32) error {
	_, err := o.call(ctx, gravity.ExportMouseUp, i32(x), i32(y), i32(button))
	return err
}

// MouseWheel reports wheel motion.
func (o *InitOutput) MouseWheel(ctx context.Context, dx, dy int32) error {
	_, err := o.call(ctx, gravity.ExportMouseWheel, i32(dx), i32(dy))
	return err
}

// KeyDown reports a key press with the active modifiers.
func (o *InitOutput) KeyDown(ctx context.Context, key, modifiers int32, repeat bool) error {
	var r int32
	if repeat {
		r = 1
	}
	_, err := o.call(ctx, gravity.ExportKeyDown, i32(key), i32(modifiers), i32(r))
	return err
}

// KeyPress reports a typed character as a unicode code point.
func (o *InitOutput) KeyPress(ctx context.Context, char int32) error {
	_, err := o.call(ctx, gravity.ExportKeyPress, i32(char))
	return err
}

// KeyUp reports a key release.
func (o *InitOutput) KeyUp(ctx context.Context, key int32) error {
	_, err := o.call(ctx, gravity.ExportKeyUp, i32(key))
	return err
}

// Touch reports a touch point.
func (o *InitOutput) Touch(ctx context.Context, id, phase int32, x, y float32) error {
	_, err := o.call(ctx, gravity.ExportTouch, i32(id), i32(phase), api.EncodeF32(x), api.EncodeF32(y))
	return err
}

// OnClipboardPaste hands a buffer allocated with AllocateVecU8 to the guest.
func (o *InitOutput) OnClipboardPaste(ctx context.Context, ptr, length uint32) error {
	_, err := o.call(ctx, gravity.ExportOnClipboardPaste, api.EncodeU32(ptr), api.EncodeU32(length))
	return err
}

// FileLoaded signals that the load started for handle has finished.
func (o *InitOutput) FileLoaded(ctx context.Context, handle uint32) error {
	_, err := o.call(ctx, gravity.ExportFileLoaded, api.EncodeU32(handle))
	return err
}

// AllocateVecU8 allocates length bytes in guest memory.
func (o *InitOutput) AllocateVecU8(ctx context.Context, length uint32) (uint32, error) {
	res, err := o.call(ctx, gravity.ExportAllocateVecU8, api.EncodeU32(length))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

// Paste allocates a guest buffer for text and delivers it through
// on_clipboard_paste. Both guest calls are bounded by the timeout.
func (o *InitOutput) Paste(ctx context.Context, text string) error {
	ptr, length, err := o.instance.WriteBytes(ctx, o.timeout, []byte(text))
	if err != nil {
		return err
	}
	return o.OnClipboardPaste(ctx, ptr, length)
}

// ExnStore hands the heap index of a host error to the guest.
func (o *InitOutput) ExnStore(ctx context.Context, idx uint32) error {
	_, err := o.call(ctx, gravity.ExportExnStore, api.EncodeU32(idx))
	return err
}

// Start runs the binding runtime entry point, which calls main.
func (o *InitOutput) Start(ctx context.Context) error {
	_, err := o.call(ctx, gravity.ExportStart)
	return err
}

// Version calls one version probe.
func (o *InitOutput) Version(ctx context.Context, probe string) (CrateVersion, error) {
	res, err := o.call(ctx, probe)
	if err != nil {
		return CrateVersion{}, err
	}
	return UnpackCrateVersion(api.DecodeU32(res[0])), nil
}

// Versions calls every version probe the binary exports, keyed by probe name.
func (o *InitOutput) Versions(ctx context.Context) (map[string]CrateVersion, error) {
	versions := make(map[string]CrateVersion)
	for _, probe := range gravity.VersionProbes {
		if !o.instance.HasExport(probe) {
			continue
		}
		v, err := o.Version(ctx, probe)
		if err != nil {
			return nil, err
		}
		versions[probe] = v
	}
	return versions, nil
}

// Close releases the instance.
func (o *InitOutput) Close(ctx context.Context) error {
	return o.instance.Close(ctx)
}
