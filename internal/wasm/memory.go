package wasm

import (
	"errors"

	"github.com/tetratelabs/wazero/api"
)

var errOutOfRange = errors.New("out of range")

// Memory provides safe memory operations for Wasm module interaction.
// Reads and writes are bounds checked. Buffers for host data come from the
// guest's own allocator, see Instance.WriteBytes.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{mem: module.Memory()}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// ReadBytes reads raw bytes from Wasm memory. The slice aliases guest memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	return m.mem.Read(ptr, length)
}

// ReadText reads length bytes at ptr as a string.
func (m *Memory) ReadText(ptr uint32, length uint32) (string, error) {
	buf, ok := m.ReadBytes(ptr, length)
	if !ok {
		return "", &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: errOutOfRange}
	}
	return string(buf), nil
}

// Write copies data into guest memory at ptr.
func (m *Memory) Write(ptr uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(ptr, data) {
		return &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data)), Err: errOutOfRange}
	}
	return nil
}
