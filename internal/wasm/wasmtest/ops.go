package wasmtest

const (
	opLoop         = 0x03
	opBr           = 0x0c
	opEnd          = 0x0b
	blockVoid      = 0x40
	opCall         = 0x10
	opDrop         = 0x1a
	opLocalGet     = 0x20
	opGlobalGet    = 0x23
	opGlobalSet    = 0x24
	opI32Load      = 0x28
	opI32Store     = 0x36
	opF32Store     = 0x38
	opI32Const     = 0x41
	opI32Add       = 0x6a
	opI32TruncF64S = 0xaa
)

// Ops concatenates instruction sequences.
func Ops(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func I32Const(v int32) []byte   { return append([]byte{opI32Const}, sleb(v)...) }
func LocalGet(i uint32) []byte  { return append([]byte{opLocalGet}, uleb(i)...) }
func GlobalGet(i uint32) []byte { return append([]byte{opGlobalGet}, uleb(i)...) }
func GlobalSet(i uint32) []byte { return append([]byte{opGlobalSet}, uleb(i)...) }
func Call(i int) []byte         { return append([]byte{opCall}, uleb(uint32(i))...) }
func Drop() []byte              { return []byte{opDrop} }
func I32Add() []byte            { return []byte{opI32Add} }
func I32TruncF64S() []byte      { return []byte{opI32TruncF64S} }

// I32Load loads from address+offset with 4-byte alignment.
func I32Load(offset uint32) []byte { return append([]byte{opI32Load, 0x02}, uleb(offset)...) }

// I32Store stores to address+offset with 4-byte alignment.
func I32Store(offset uint32) []byte { return append([]byte{opI32Store, 0x02}, uleb(offset)...) }

// F32Store stores to address+offset with 4-byte alignment.
func F32Store(offset uint32) []byte { return append([]byte{opF32Store, 0x02}, uleb(offset)...) }

// Spin loops forever. Only an interrupted context ends a call that runs it.
func Spin() []byte { return []byte{opLoop, blockVoid, opBr, 0x00, opEnd} }
