package wasm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// ModuleLoader handles loading and compiling Wasm modules.
type ModuleLoader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewModuleLoader creates a new module loader.
func NewModuleLoader(runtime *Runtime, logger *zap.Logger) *ModuleLoader {
	return &ModuleLoader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// ModuleSource represents a source for Wasm bytecode.
type ModuleSource interface {
	// Bytes returns the Wasm bytecode.
	Bytes(ctx context.Context) ([]byte, error)

	// Name returns a name/identifier for this module.
	Name() string
}

// FileModuleSource loads Wasm from a file.
type FileModuleSource struct {
	Path string
}

// Bytes reads the Wasm file.
func (f *FileModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Name returns the file path as the module name.
func (f *FileModuleSource) Name() string {
	return f.Path
}

// MemoryModuleSource loads Wasm from memory.
type MemoryModuleSource struct {
	ModuleName string
	Data       []byte
}

// Bytes returns the Wasm bytecode.
func (m *MemoryModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	return m.Data, nil
}

// Name returns the module name.
func (m *MemoryModuleSource) Name() string {
	return m.ModuleName
}

// ReaderModuleSource drains an io.Reader once.
type ReaderModuleSource struct {
	ModuleName string
	Reader     io.Reader
}

// Bytes reads the whole stream.
func (r *ReaderModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	return io.ReadAll(r.Reader)
}

// Name returns the module name.
func (r *ReaderModuleSource) Name() string {
	return r.ModuleName
}

// RequestModuleSource fetches Wasm by executing an HTTP request.
type RequestModuleSource struct {
	Request *http.Request
	Client  *http.Client
}

// Bytes performs the request with ctx attached.
func (r *RequestModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(r.Request.WithContext(ctx))
	if err != nil {
		return nil, &FetchError{URL: r.Name(), Err: err}
	}
	return (&ResponseModuleSource{Response: resp}).Bytes(ctx)
}

// Name returns the request URL.
func (r *RequestModuleSource) Name() string {
	return r.Request.URL.String()
}

// URLModuleSource fetches Wasm with a GET request.
type URLModuleSource struct {
	URL    string
	Client *http.Client
}

// Bytes downloads the module.
func (u *URLModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: u.URL, Err: err}
	}
	return (&RequestModuleSource{Request: req, Client: u.Client}).Bytes(ctx)
}

// Name returns the URL.
func (u *URLModuleSource) Name() string {
	return u.URL
}

// ResponseModuleSource reads Wasm from an HTTP response the caller already has.
// The body is closed after reading.
type ResponseModuleSource struct {
	Response *http.Response
}

// Bytes reads and closes the response body. Non-2xx statuses are errors.
func (r *ResponseModuleSource) Bytes(ctx context.Context) ([]byte, error) {
	defer r.Response.Body.Close()

	if r.Response.StatusCode < 200 || r.Response.StatusCode > 299 {
		return nil, &FetchError{URL: r.Name(), StatusCode: r.Response.StatusCode}
	}

	data, err := io.ReadAll(r.Response.Body)
	if err != nil {
		return nil, &FetchError{URL: r.Name(), Err: err}
	}
	return data, nil
}

// Name returns the URL of the request that produced the response.
func (r *ResponseModuleSource) Name() string {
	if r.Response.Request != nil && r.Response.Request.URL != nil {
		return r.Response.Request.URL.String()
	}
	return "response"
}

// LoadModule loads a Wasm module from a source.
// Compiles it if not already cached.
func (l *ModuleLoader) LoadModule(ctx context.Context, source ModuleSource) (*CompiledModule, error) {
	// Check cache first
	if cached, ok := l.runtime.GetCompiledModule(source.Name()); ok {
		l.logger.Debug("Module cache hit",
			zap.String("module", source.Name()),
		)
		return cached, nil
	}

	wasmBytes, err := source.Bytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", source.Name(), err)
	}

	l.logger.Info("Compiling Wasm module",
		zap.String("module", source.Name()),
		zap.Int("size_bytes", len(wasmBytes)),
	)

	startTime := time.Now()

	// CompileModule decodes and validates the binary. This is the expensive
	// step and happens once per module name.
	compiled, err := l.runtime.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, &CompilationError{
			ModuleName: source.Name(),
			Err:        err,
		}
	}

	duration := time.Since(startTime)

	compiledModule := &CompiledModule{
		Module:     compiled,
		Name:       source.Name(),
		Source:     source.Name(),
		SizeBytes:  int64(len(wasmBytes)),
		CompiledAt: time.Now().Unix(),
	}

	l.runtime.StoreCompiledModule(compiledModule)

	l.logger.Info("Module compiled successfully",
		zap.String("module", source.Name()),
		zap.Duration("duration", duration),
		zap.Int("exported_functions", len(compiled.ExportedFunctions())),
		zap.Int("imported_functions", len(compiled.ImportedFunctions())),
	)

	return compiledModule, nil
}
