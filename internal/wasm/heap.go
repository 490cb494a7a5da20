package wasm

import (
	"sync"
)

// The heap layout follows the binding runtime: 128 reserved slots, then the
// four builtin values undefined, null, true and false. Indices below
// heapBuiltins are never allocated or freed.
const (
	heapReserved = 128
	heapBuiltins = heapReserved + 4
)

// Undefined is the value stored in reserved and undefined heap slots.
type Undefined struct{}

// ObjectHeap holds host values the guest refers to by index, such as the
// errors handed to __wbindgen_exn_store. Freed slots are reused.
type ObjectHeap struct {
	mu    sync.Mutex
	slots []interface{}
	used  []bool
	free  []uint32
}

// NewObjectHeap returns a heap containing only the reserved and builtin slots.
func NewObjectHeap() *ObjectHeap {
	h := &ObjectHeap{
		slots: make([]interface{}, heapBuiltins, heapBuiltins+32),
		used:  make([]bool, heapBuiltins, heapBuiltins+32),
	}
	for i := 0; i < heapReserved; i++ {
		h.slots[i] = Undefined{}
	}
	h.slots[heapReserved] = Undefined{}
	h.slots[heapReserved+1] = nil
	h.slots[heapReserved+2] = true
	h.slots[heapReserved+3] = false
	for i := range h.used {
		h.used[i] = true
	}
	return h
}

// Add stores v and returns its index.
func (h *ObjectHeap) Add(v interface{}) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.free); n > 0 {
		idx := h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[idx] = v
		h.used[idx] = true
		return idx
	}

	h.slots = append(h.slots, v)
	h.used = append(h.used, true)
	return uint32(len(h.slots) - 1)
}

// Get returns the value at idx.
func (h *ObjectHeap) Get(idx uint32) (interface{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if int(idx) >= len(h.slots) || !h.used[idx] {
		return nil, false
	}
	return h.slots[idx], true
}

// Drop frees idx. Builtin slots and unknown indices are ignored.
func (h *ObjectHeap) Drop(idx uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(idx)
}

// Take returns the value at idx and frees the slot.
func (h *ObjectHeap) Take(idx uint32) (interface{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if int(idx) >= len(h.slots) || !h.used[idx] {
		return nil, false
	}
	v := h.slots[idx]
	h.drop(idx)
	return v, true
}

// Len returns the number of live objects, excluding builtins.
func (h *ObjectHeap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots) - heapBuiltins - len(h.free)
}

func (h *ObjectHeap) drop(idx uint32) {
	if idx < heapBuiltins || int(idx) >= len(h.slots) || !h.used[idx] {
		return
	}
	h.slots[idx] = nil
	h.used[idx] = false
	h.free = append(h.free, idx)
}
