package wasm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: runtime.Host(),
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string

	// Host state behind the imports. Nil routes console output to the
	// logger and disables file loading.
	Imports Imports
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	module    api.Module
	runtime   *Runtime
	hostFuncs *HostFunctionsImpl
	memory    *Memory
	heap      *ObjectHeap

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	closeOnce sync.Once
	closeErr  error
}

// Instantiate creates a new instance from a compiled module.
// Host functions are exported to the Wasm module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	// The host routing of a live instance is keyed by its ID, so the ID is
	// claimed before anything is attached under it.
	if err := m.runtime.reserveInstance(instanceID); err != nil {
		return nil, err
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.runtime.resolveImports(ctx, compiled); err != nil {
		m.runtime.releaseInstance(instanceID)
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	heap := NewObjectHeap()
	m.hostFuncs.attach(instanceID, config.Imports, heap)

	// The binding runtime starts the game explicitly through
	// __wbindgen_start, so no start functions run here.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions()

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		m.hostFuncs.detach(instanceID)
		m.runtime.releaseInstance(instanceID)
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports := m.cacheExportedFunctions(compiled, module)

	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		hostFuncs: m.hostFuncs,
		memory:    NewMemory(module),
		heap:      heap,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
	}

	m.runtime.StoreInstance(instanceID, instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// cacheExportedFunctions caches references to exported functions.
func (m *InstanceManager) cacheExportedFunctions(compiled *CompiledModule, module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for name := range compiled.Module.ExportedFunctions() {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Memory returns the memory helper of the instance.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// Heap returns the object heap shared with the host imports.
func (i *Instance) Heap() *ObjectHeap {
	return i.heap
}

// HasExport reports whether the guest exports the named function.
func (i *Instance) HasExport(name string) bool {
	_, ok := i.exports[name]
	return ok
}

// Exports returns the sorted names of exported functions.
func (i *Instance) Exports() []string {
	names := make([]string, 0, len(i.exports))
	for name := range i.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Function returns an exported function.
func (i *Instance) Function(name string) (api.Function, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}
	return fn, nil
}

// Call invokes an exported function.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, err
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("call '%s': %w", name, err)
	}
	return results, nil
}

// CallWithTimeout invokes an exported function and interrupts it after
// timeout. A zero timeout means no limit. An interrupted call closes the
// instance; the guest is unusable afterwards.
func (i *Instance) CallWithTimeout(ctx context.Context, timeout time.Duration, name string, params ...uint64) ([]uint64, error) {
	if timeout <= 0 {
		return i.Call(ctx, name, params...)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := i.Call(callCtx, name, params...)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{FunctionName: name, Duration: timeout}
	}
	return results, err
}

// WriteBytes copies data into a buffer obtained from the guest allocator
// (allocate_vec_u8), so the guest owns it. This is the contract the browser
// glue uses for clipboard and file data. The allocation is bounded by
// timeout like any other guest call. Returns pointer and length.
func (i *Instance) WriteBytes(ctx context.Context, timeout time.Duration, data []byte) (uint32, uint32, error) {
	length := uint32(len(data))

	res, err := i.CallWithTimeout(ctx, timeout, gravity.ExportAllocateVecU8, api.EncodeU32(length))
	if err != nil {
		return 0, 0, err
	}

	ptr := api.DecodeU32(res[0])
	if ptr == 0 && length > 0 {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: length, Err: errors.New("guest returned null")}
	}
	if err := i.memory.Write(ptr, data); err != nil {
		return 0, 0, err
	}
	return ptr, length, nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		i.hostFuncs.detach(i.ID)
		i.closeErr = i.module.Close(ctx)
		// wazero frees the module name on Close, so the ID becomes
		// reusable only after it.
		i.runtime.DeleteInstance(i.ID)
	})
	return i.closeErr
}
