// Package wasmtest assembles small WebAssembly binaries for tests.
//
// The encoder covers the subset of the binary format the fixtures need:
// function types, function imports, one memory, i32 globals, exports,
// code and active data segments.
package wasmtest

import (
	"bytes"
)

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
	F32 byte = 0x7d
	F64 byte = 0x7c
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
)

// FuncType is a function signature.
type FuncType struct {
	Params  []byte
	Results []byte
}

func (t FuncType) key() string {
	return string(t.Params) + "|" + string(t.Results)
}

// Import is an imported host function.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Func is a function defined by the module. A non-empty Export name exports it.
type Func struct {
	Export string
	Type   FuncType
	Locals []byte
	Body   []byte
}

// Global is a mutable or immutable i32 global.
type Global struct {
	Mutable bool
	Init    int32
}

// Data is an active data segment for memory 0.
type Data struct {
	Offset int32
	Bytes  []byte
}

// Module is a module under construction.
type Module struct {
	Imports      []Import
	Funcs        []Func
	Globals      []Global
	Data         []Data
	MemoryPages  uint32
	ExportMemory bool
}

// ImportIndex returns the function index of an import, or -1.
func (m *Module) ImportIndex(module, name string) int {
	for i, imp := range m.Imports {
		if imp.Module == module && imp.Name == name {
			return i
		}
	}
	return -1
}

// FuncIndex returns the function index of an exported function, or -1.
// Defined functions are numbered after all imports.
func (m *Module) FuncIndex(export string) int {
	for i, f := range m.Funcs {
		if f.Export == export {
			return len(m.Imports) + i
		}
	}
	return -1
}

// Without returns a copy of the module without the named export. Calls to
// the removed function are not rewritten, so only drop functions nothing
// calls.
func (m *Module) Without(export string) *Module {
	c := *m
	c.Funcs = nil
	for _, f := range m.Funcs {
		if f.Export != export {
			c.Funcs = append(c.Funcs, f)
		}
	}
	return &c
}

// Replace returns a copy of the module with the named export redefined.
func (m *Module) Replace(f Func) *Module {
	c := *m
	c.Funcs = make([]Func, len(m.Funcs))
	copy(c.Funcs, m.Funcs)
	for i := range c.Funcs {
		if c.Funcs[i].Export == f.Export {
			c.Funcs[i] = f
			return &c
		}
	}
	c.Funcs = append(c.Funcs, f)
	return &c
}

// Encode serializes the module into the wasm binary format.
func (m *Module) Encode() []byte {
	var typeList []FuncType
	typeIndex := make(map[string]uint32)
	indexOf := func(t FuncType) uint32 {
		if idx, ok := typeIndex[t.key()]; ok {
			return idx
		}
		idx := uint32(len(typeList))
		typeIndex[t.key()] = idx
		typeList = append(typeList, t)
		return idx
	}
	for _, imp := range m.Imports {
		indexOf(imp.Type)
	}
	for _, f := range m.Funcs {
		indexOf(f.Type)
	}

	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d}) // \0asm
	out.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version 1

	if len(typeList) > 0 {
		var s []byte
		s = append(s, uleb(uint32(len(typeList)))...)
		for _, t := range typeList {
			s = append(s, 0x60)
			s = append(s, vec(t.Params)...)
			s = append(s, vec(t.Results)...)
		}
		writeSection(&out, sectionType, s)
	}

	if len(m.Imports) > 0 {
		var s []byte
		s = append(s, uleb(uint32(len(m.Imports)))...)
		for _, imp := range m.Imports {
			s = append(s, name(imp.Module)...)
			s = append(s, name(imp.Name)...)
			s = append(s, kindFunc)
			s = append(s, uleb(indexOf(imp.Type))...)
		}
		writeSection(&out, sectionImport, s)
	}

	if len(m.Funcs) > 0 {
		var s []byte
		s = append(s, uleb(uint32(len(m.Funcs)))...)
		for _, f := range m.Funcs {
			s = append(s, uleb(indexOf(f.Type))...)
		}
		writeSection(&out, sectionFunction, s)
	}

	if m.MemoryPages > 0 {
		s := []byte{0x01, 0x00} // one memory, min only
		s = append(s, uleb(m.MemoryPages)...)
		writeSection(&out, sectionMemory, s)
	}

	if len(m.Globals) > 0 {
		var s []byte
		s = append(s, uleb(uint32(len(m.Globals)))...)
		for _, g := range m.Globals {
			mut := byte(0x00)
			if g.Mutable {
				mut = 0x01
			}
			s = append(s, I32, mut)
			s = append(s, I32Const(g.Init)...)
			s = append(s, opEnd)
		}
		writeSection(&out, sectionGlobal, s)
	}

	var exports []byte
	count := uint32(0)
	if m.ExportMemory && m.MemoryPages > 0 {
		exports = append(exports, name("memory")...)
		exports = append(exports, kindMemory, 0x00)
		count++
	}
	for i, f := range m.Funcs {
		if f.Export == "" {
			continue
		}
		exports = append(exports, name(f.Export)...)
		exports = append(exports, kindFunc)
		exports = append(exports, uleb(uint32(len(m.Imports)+i))...)
		count++
	}
	if count > 0 {
		writeSection(&out, sectionExport, append(uleb(count), exports...))
	}

	if len(m.Funcs) > 0 {
		var s []byte
		s = append(s, uleb(uint32(len(m.Funcs)))...)
		for _, f := range m.Funcs {
			var body []byte
			body = append(body, uleb(uint32(len(f.Locals)))...)
			for _, l := range f.Locals {
				body = append(body, 0x01, l)
			}
			body = append(body, f.Body...)
			body = append(body, opEnd)
			s = append(s, uleb(uint32(len(body)))...)
			s = append(s, body...)
		}
		writeSection(&out, sectionCode, s)
	}

	if len(m.Data) > 0 {
		var s []byte
		s = append(s, uleb(uint32(len(m.Data)))...)
		for _, d := range m.Data {
			s = append(s, 0x00) // active, memory 0
			s = append(s, I32Const(d.Offset)...)
			s = append(s, opEnd)
			s = append(s, vec(d.Bytes)...)
		}
		writeSection(&out, sectionData, s)
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, contents []byte) {
	out.WriteByte(id)
	out.Write(uleb(uint32(len(contents))))
	out.Write(contents)
}

func vec(b []byte) []byte {
	return append(uleb(uint32(len(b))), b...)
}

func name(s string) []byte {
	return vec([]byte(s))
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}
