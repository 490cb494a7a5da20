package wasm

import (
	"fmt"
	"time"
)

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d): %v",
		e.Operation, e.Address, e.Length, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// HostFunctionError occurs when host function execution fails
type HostFunctionError struct {
	FunctionName string
	Err          error
}

func (e *HostFunctionError) Error() string {
	return fmt.Sprintf("host function '%s' failed: %v", e.FunctionName, e.Err)
}

func (e *HostFunctionError) Unwrap() error {
	return e.Err
}

// TimeoutError occurs when Wasm execution times out
type TimeoutError struct {
	FunctionName string
	Duration     time.Duration
}

func (e *TimeoutError) Error() string {
	if e.FunctionName == "" {
		return fmt.Sprintf("Wasm execution timed out after %v", e.Duration)
	}
	return fmt.Sprintf("Wasm call '%s' timed out after %v", e.FunctionName, e.Duration)
}

// FetchError occurs when a module fetched over HTTP cannot be retrieved
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch '%s': %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to fetch '%s': unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UnresolvedImportError occurs when a guest imports a function that a host
// module already instantiated in this runtime does not provide
type UnresolvedImportError struct {
	Module string
	Name   string
}

func (e *UnresolvedImportError) Error() string {
	return fmt.Sprintf("import '%s.%s' cannot be resolved: host module already instantiated without it",
		e.Module, e.Name)
}

// InstanceLimitError occurs when the runtime already tracks MaxInstances instances
type InstanceLimitError struct {
	Max int
}

func (e *InstanceLimitError) Error() string {
	return fmt.Sprintf("instance limit reached (max %d)", e.Max)
}

// InstanceExistsError occurs when an instance ID is already live or being
// instantiated
type InstanceExistsError struct {
	InstanceID string
}

func (e *InstanceExistsError) Error() string {
	return fmt.Sprintf("instance '%s' already exists", e.InstanceID)
}

// GuestThrowError carries a message the guest raised through __wbindgen_throw
type GuestThrowError struct {
	Message string
}

func (e *GuestThrowError) Error() string {
	return fmt.Sprintf("guest threw: %s", e.Message)
}
