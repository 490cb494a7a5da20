package wasm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewRuntime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime == nil {
		t.Fatal("Runtime is nil")
	}

	if runtime.Host() == nil {
		t.Error("Host functions not initialized")
	}

	if err := runtime.Close(context.Background()); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 256 {
		t.Errorf("Default memory pages = %d, want 256", config.MemoryPages)
	}

	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}

	if config.MaxInstances != 100 {
		t.Errorf("Default max instances = %d, want 100", config.MaxInstances)
	}
}

func TestRuntimeConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := &RuntimeConfig{
		MemoryPages:  128,
		DebugEnabled: true,
		MaxInstances: 50,
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	defer runtime.Close(ctx)

	if runtime.Config().MemoryPages != 128 {
		t.Errorf("Memory pages not set correctly")
	}
}

func TestRuntimeCompilationCacheDir(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := DefaultRuntimeConfig()
	config.CacheDir = t.TempDir()

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime with cache dir: %v", err)
	}

	if runtime.cache == nil {
		t.Error("Compilation cache should be configured")
	}

	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRuntimeContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	cancel()

	// wazero should handle cancelled context gracefully
	err = runtime.Close(ctx)
	if err != nil && err != context.Canceled {
		t.Errorf("Unexpected error when closing with cancelled context: %v", err)
	}
}

func TestRuntimeModuleCache(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	module := &CompiledModule{
		Name:       "simple_gravity_bg.wasm",
		Source:     "test",
		SizeBytes:  1024,
		CompiledAt: time.Now().Unix(),
	}

	runtime.StoreCompiledModule(module)

	retrieved, ok := runtime.GetCompiledModule("simple_gravity_bg.wasm")
	if !ok {
		t.Fatal("Failed to retrieve module from cache")
	}

	if retrieved.Name != "simple_gravity_bg.wasm" {
		t.Errorf("Retrieved wrong module: %s", retrieved.Name)
	}
}

func TestRuntimeInstanceTracking(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	instanceID := "test-instance"
	instanceData := "test-data"

	runtime.StoreInstance(instanceID, instanceData)

	retrieved, ok := runtime.GetInstance(instanceID)
	if !ok {
		t.Fatal("Failed to retrieve instance from tracking")
	}

	if retrieved != instanceData {
		t.Errorf("Retrieved wrong instance data")
	}

	if runtime.InstanceCount() != 1 {
		t.Errorf("Instance count = %d, want 1", runtime.InstanceCount())
	}

	runtime.DeleteInstance(instanceID)

	_, ok = runtime.GetInstance(instanceID)
	if ok {
		t.Error("Instance should have been deleted")
	}
}

func TestRuntimeIsClosed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if runtime.IsClosed() {
		t.Error("Runtime should not be closed initially")
	}

	runtime.Close(ctx)

	if !runtime.IsClosed() {
		t.Error("Runtime should be closed after Close()")
	}
}

func TestCompilationError(t *testing.T) {
	err := &CompilationError{
		ModuleName: "test",
		Err:        &testError{},
	}

	expected := "failed to compile Wasm module 'test': test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestInstantiationError(t *testing.T) {
	err := &InstantiationError{
		ModuleName: "test",
		InstanceID: "inst-1",
		Err:        &testError{},
	}

	expected := "failed to instantiate module 'test' (instance: inst-1): test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestModuleNotFoundError(t *testing.T) {
	err := &ModuleNotFoundError{ModuleName: "test"}

	expected := "module 'test' not found in cache"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestFunctionNotFoundError(t *testing.T) {
	err := &FunctionNotFoundError{
		ModuleName:   "test",
		FunctionName: "frame",
	}

	expected := "function 'frame' not found in module 'test'"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{FunctionName: "frame", Duration: 250 * time.Millisecond}

	expected := "Wasm call 'frame' timed out after 250ms"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestFetchError(t *testing.T) {
	err := &FetchError{URL: "http://example.com/game.wasm", StatusCode: 404}

	expected := "failed to fetch 'http://example.com/game.wasm': unexpected status 404"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}

	wrapped := &FetchError{URL: "x", Err: &testError{}}
	var te *testError
	if !errors.As(wrapped, &te) {
		t.Error("FetchError should unwrap to its cause")
	}
}

// testError is a simple error for testing.
type testError struct{}

func (e *testError) Error() string {
	return "test error"
}
