package wasm

import (
	"context"
	"sync"
	"time"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// LogLevel is the severity of a console_* import call.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// Imports is the per-instance host state behind the game's imports.
// Methods run on the goroutine executing the guest call that triggered them.
type Imports interface {
	Log(level LogLevel, msg string)
	Now() float64
	SetClipboard(text string)
	SetWindowTitle(title string)
	SetCursor(cursor string)

	// LoadFile starts loading path and returns its handle. Completion is
	// reported to the guest through file_loaded(handle).
	LoadFile(path string) uint32
	// FileSize returns the loaded size, or -1 if the file is unknown,
	// still loading or failed.
	FileSize(id uint32) int32
	// TakeFile hands the loaded contents over and forgets the handle.
	TakeFile(id uint32) ([]byte, bool)
}

// HostFunctionsImpl implements host functions for Wasm modules.
// The host modules are shared by every instance of a runtime; calls are
// routed to the Imports registered for the calling instance.
type HostFunctionsImpl struct {
	logger   *zap.Logger
	guests   sync.Map // instance ID -> *guestState
	fallback Imports
}

type guestState struct {
	imports Imports
	heap    *ObjectHeap
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	logger = logger.With(zap.String("component", "wasm-host"))
	return &HostFunctionsImpl{
		logger:   logger,
		fallback: newLogImports(logger),
	}
}

func (h *HostFunctionsImpl) attach(instanceID string, imports Imports, heap *ObjectHeap) {
	if imports == nil {
		imports = h.fallback
	}
	h.guests.Store(instanceID, &guestState{imports: imports, heap: heap})
}

func (h *HostFunctionsImpl) detach(instanceID string) {
	h.guests.Delete(instanceID)
}

func (h *HostFunctionsImpl) state(mod api.Module) *guestState {
	if val, ok := h.guests.Load(mod.Name()); ok {
		return val.(*guestState)
	}
	return &guestState{imports: h.fallback, heap: NewObjectHeap()}
}

// raise stores err in the instance heap and hands its index to the guest
// through __wbindgen_exn_store, mirroring how the browser glue reports a
// failed import.
func (h *HostFunctionsImpl) raise(ctx context.Context, mod api.Module, name string, err error) {
	st := h.state(mod)
	hostErr := &HostFunctionError{FunctionName: name, Err: err}
	idx := st.heap.Add(hostErr)

	h.logger.Warn("Host function failed",
		zap.String("instance_id", mod.Name()),
		zap.String("function", name),
		zap.Uint32("heap_index", idx),
		zap.Error(err),
	)

	if fn := mod.ExportedFunction(gravity.ExportExnStore); fn != nil {
		if _, callErr := fn.Call(ctx, api.EncodeU32(idx)); callErr != nil {
			h.logger.Error("Failed to store exception in guest",
				zap.String("instance_id", mod.Name()),
				zap.Error(callErr),
			)
		}
	}
}

func (h *HostFunctionsImpl) readText(ctx context.Context, mod api.Module, name string, ptr, length uint32) (string, bool) {
	msg, err := NewMemory(mod).ReadText(ptr, length)
	if err != nil {
		h.raise(ctx, mod, name, err)
		return "", false
	}
	return msg, true
}

// logMessage builds console_* handlers.
// Signature: console_*(ptr, length)
func (h *HostFunctionsImpl) logMessage(name string, level LogLevel) func(context.Context, api.Module, uint32, uint32) {
	return func(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
		if msg, ok := h.readText(ctx, mod, name, ptr, length); ok {
			h.state(mod).imports.Log(level, msg)
		}
	}
}

// now returns seconds since the session started.
func (h *HostFunctionsImpl) now(ctx context.Context, mod api.Module) float64 {
	return h.state(mod).imports.Now()
}

func (h *HostFunctionsImpl) setClipboard(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	if text, ok := h.readText(ctx, mod, gravity.ImportSetClipboard, ptr, length); ok {
		h.state(mod).imports.SetClipboard(text)
	}
}

func (h *HostFunctionsImpl) setWindowTitle(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	if title, ok := h.readText(ctx, mod, gravity.ImportSetWindowTitle, ptr, length); ok {
		h.state(mod).imports.SetWindowTitle(title)
	}
}

func (h *HostFunctionsImpl) setCursor(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	if cursor, ok := h.readText(ctx, mod, gravity.ImportSetCursor, ptr, length); ok {
		h.state(mod).imports.SetCursor(cursor)
	}
}

// loadFile starts an asynchronous file load.
// Signature: fs_load_file(ptr, length) -> handle
func (h *HostFunctionsImpl) loadFile(ctx context.Context, mod api.Module, ptr uint32, length uint32) uint32 {
	path, ok := h.readText(ctx, mod, gravity.ImportLoadFile, ptr, length)
	if !ok {
		return 0
	}
	return h.state(mod).imports.LoadFile(path)
}

// getBufferSize returns the size of a loaded file or -1.
// Signature: fs_get_buffer_size(handle) -> size
func (h *HostFunctionsImpl) getBufferSize(ctx context.Context, mod api.Module, id uint32) int32 {
	return h.state(mod).imports.FileSize(id)
}

// takeBuffer copies at most max bytes of a loaded file to ptr.
// Signature: fs_take_buffer(handle, ptr, max)
func (h *HostFunctionsImpl) takeBuffer(ctx context.Context, mod api.Module, id uint32, ptr uint32, max uint32) {
	data, ok := h.state(mod).imports.TakeFile(id)
	if !ok {
		return
	}
	if uint32(len(data)) > max {
		data = data[:max]
	}
	if err := NewMemory(mod).Write(ptr, data); err != nil {
		h.raise(ctx, mod, gravity.ImportTakeBuffer, err)
	}
}

func (h *HostFunctionsImpl) objectDropRef(ctx context.Context, mod api.Module, idx uint32) {
	h.state(mod).heap.Drop(idx)
}

// throw aborts the current guest call. wazero turns the panic into the
// error returned by the export the host invoked.
func (h *HostFunctionsImpl) throw(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	msg, _ := NewMemory(mod).ReadText(ptr, length)
	panic(&GuestThrowError{Message: msg})
}

// exportKnown registers the host implementation of module.name, if any.
func (h *HostFunctionsImpl) exportKnown(builder wazero.HostModuleBuilder, module, name string) bool {
	if _, ok := gravity.LookupImport(module, name); !ok {
		return false
	}

	fb := builder.NewFunctionBuilder()
	switch name {
	case gravity.ImportConsoleLog, gravity.ImportConsoleInfo:
		fb.WithFunc(h.logMessage(name, LogInfo)).WithParameterNames("ptr", "length")
	case gravity.ImportConsoleDebug:
		fb.WithFunc(h.logMessage(name, LogDebug)).WithParameterNames("ptr", "length")
	case gravity.ImportConsoleWarn:
		fb.WithFunc(h.logMessage(name, LogWarn)).WithParameterNames("ptr", "length")
	case gravity.ImportConsoleError:
		fb.WithFunc(h.logMessage(name, LogError)).WithParameterNames("ptr", "length")
	case gravity.ImportNow:
		fb.WithFunc(h.now)
	case gravity.ImportSetClipboard:
		fb.WithFunc(h.setClipboard).WithParameterNames("ptr", "length")
	case gravity.ImportSetWindowTitle:
		fb.WithFunc(h.setWindowTitle).WithParameterNames("ptr", "length")
	case gravity.ImportSetCursor:
		fb.WithFunc(h.setCursor).WithParameterNames("ptr", "length")
	case gravity.ImportLoadFile:
		fb.WithFunc(h.loadFile).WithParameterNames("ptr", "length")
	case gravity.ImportGetBufferSize:
		fb.WithFunc(h.getBufferSize).WithParameterNames("handle")
	case gravity.ImportTakeBuffer:
		fb.WithFunc(h.takeBuffer).WithParameterNames("handle", "ptr", "max")
	case gravity.ImportObjectDropRef:
		fb.WithFunc(h.objectDropRef).WithParameterNames("idx")
	case gravity.ImportThrow:
		fb.WithFunc(h.throw).WithParameterNames("ptr", "length")
	default:
		return false
	}
	fb.Export(name)
	return true
}

// logImports serves instances that were instantiated without their own
// Imports: console output goes to the logger and file loading is unsupported.
type logImports struct {
	logger  *zap.Logger
	started time.Time

	mu        sync.Mutex
	clipboard string
}

func newLogImports(logger *zap.Logger) *logImports {
	return &logImports{logger: logger, started: time.Now()}
}

func (l *logImports) Log(level LogLevel, msg string) {
	switch level {
	case LogDebug:
		l.logger.Debug(msg)
	case LogWarn:
		l.logger.Warn(msg)
	case LogError:
		l.logger.Error(msg)
	default:
		l.logger.Info(msg)
	}
}

func (l *logImports) Now() float64 {
	return time.Since(l.started).Seconds()
}

func (l *logImports) SetClipboard(text string) {
	l.mu.Lock()
	l.clipboard = text
	l.mu.Unlock()
}

func (l *logImports) SetWindowTitle(title string) {
	l.logger.Debug("Window title set", zap.String("title", title))
}

func (l *logImports) SetCursor(cursor string) {
	l.logger.Debug("Cursor set", zap.String("cursor", cursor))
}

func (l *logImports) LoadFile(path string) uint32 {
	l.logger.Warn("File loading is not available for this instance", zap.String("path", path))
	return 0
}

func (l *logImports) FileSize(id uint32) int32 {
	return -1
}

func (l *logImports) TakeFile(id uint32) ([]byte, bool) {
	return nil, false
}
