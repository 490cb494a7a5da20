package wasmtest

// Mailbox layout of the game fixture. Every exported entry point records its
// call id and arguments here so tests can observe what the host delivered.
const (
	MailboxCall  = 0
	MailboxArgs  = 4 // up to four 4-byte arguments
	FrameCounter = 32
	FileHandle   = 36
	FileSize     = 40
	ExnIndex     = 44
	StartCalls   = 48
	NowSeconds   = 52 // truncated now() at the last frame

	BootMessage  = 256
	AssetPath    = 320
	FileBuffer   = 1024
	HeapBase     = 4096
	FileCapacity = HeapBase - FileBuffer
)

// Call ids written to MailboxCall.
const (
	CallNone int32 = iota
	CallFrame
	CallResize
	CallMouseMove
	CallRawMouseMove
	CallMouseDown
	CallMouseUp
	CallMouseWheel
	CallKeyDown
	CallKeyPress
	CallKeyUp
	CallTouch
	CallClipboardPaste
	CallFileLoaded
	CallExnStore
)

// Packed crate versions reported by the probe exports.
const (
	MacroquadAudioVersion = 0<<24 | 1<<16 | 0
	QuadURLVersion        = 0<<24 | 1<<16 | 1
	SappJsutilsVersion    = 0<<24 | 1<<16 | 5
	CrateVersion          = 0<<24 | 2<<16 | 3
)

// Boot strings placed in the data section.
const (
	BootText  = "simple gravity booted"
	AssetName = "assets/level.ron"
)

var (
	void    = FuncType{}
	i32     = []byte{I32}
	i32i32  = []byte{I32, I32}
	i32x3   = []byte{I32, I32, I32}
	touchTy = []byte{I32, I32, F32, F32}
)

// Game returns a stand-in for the simple gravity binary. It has the full
// export table, imports a handful of host functions plus one GL call the
// host does not implement, and behaves as follows:
//
//   - main logs BootText and requests AssetName through fs_load_file
//   - __wbindgen_start counts itself and calls main(0, 0)
//   - frame counts frames and stores the truncated now() at NowSeconds
//   - file_loaded probes the buffer size and copies the file to FileBuffer
//   - allocate_vec_u8 is a bump allocator starting at HeapBase
//   - every input export records its arguments in the mailbox
func Game() *Module {
	m := &Module{
		MemoryPages:  1,
		ExportMemory: true,
		Globals:      []Global{{Mutable: true, Init: HeapBase}},
		Imports: []Import{
			{Module: "env", Name: "console_log", Type: FuncType{Params: i32i32}},
			{Module: "env", Name: "fs_load_file", Type: FuncType{Params: i32i32, Results: i32}},
			{Module: "env", Name: "fs_get_buffer_size", Type: FuncType{Params: i32, Results: i32}},
			{Module: "env", Name: "fs_take_buffer", Type: FuncType{Params: i32x3}},
			{Module: "env", Name: "glClear", Type: FuncType{Params: i32}},
			{Module: "env", Name: "now", Type: FuncType{Results: []byte{F64}}},
		},
		Data: []Data{
			{Offset: BootMessage, Bytes: []byte(BootText)},
			{Offset: AssetPath, Bytes: []byte(AssetName)},
		},
	}

	consoleLog := m.ImportIndex("env", "console_log")
	loadFile := m.ImportIndex("env", "fs_load_file")
	bufferSize := m.ImportIndex("env", "fs_get_buffer_size")
	takeBuffer := m.ImportIndex("env", "fs_take_buffer")
	glClear := m.ImportIndex("env", "glClear")
	now := m.ImportIndex("env", "now")

	m.Funcs = []Func{
		{
			Export: "main",
			Type:   FuncType{Params: i32i32, Results: i32},
			Body: Ops(
				I32Const(BootMessage), I32Const(int32(len(BootText))), Call(consoleLog),
				I32Const(0), I32Const(AssetPath), I32Const(int32(len(AssetName))), Call(loadFile), I32Store(FileHandle),
				I32Const(0), Call(glClear),
				I32Const(0),
			),
		},
		{
			Export: "frame",
			Type:   void,
			Body: Ops(
				record(CallFrame),
				increment(FrameCounter),
				I32Const(0), Call(now), I32TruncF64S(), I32Store(NowSeconds),
			),
		},
		recorder("resize", CallResize, i32i32),
		recorder("mouse_move", CallMouseMove, i32i32),
		recorder("raw_mouse_move", CallRawMouseMove, i32i32),
		recorder("mouse_down", CallMouseDown, i32x3),
		recorder("mouse_up", CallMouseUp, i32x3),
		recorder("mouse_wheel", CallMouseWheel, i32i32),
		recorder("key_down", CallKeyDown, i32x3),
		recorder("key_press", CallKeyPress, i32),
		recorder("key_up", CallKeyUp, i32),
		recorder("touch", CallTouch, touchTy),
		recorder("on_clipboard_paste", CallClipboardPaste, i32i32),
		{
			Export: "file_loaded",
			Type:   FuncType{Params: i32},
			Body: Ops(
				record(CallFileLoaded, I32),
				I32Const(0), LocalGet(0), Call(bufferSize), I32Store(FileSize),
				LocalGet(0), I32Const(FileBuffer), I32Const(FileCapacity), Call(takeBuffer),
			),
		},
		{
			Export: "allocate_vec_u8",
			Type:   FuncType{Params: i32, Results: i32},
			Body: Ops(
				GlobalGet(0),
				GlobalGet(0), LocalGet(0), I32Add(), GlobalSet(0),
			),
		},
		constant("macroquad_audio_crate_version", MacroquadAudioVersion),
		constant("quad_url_crate_version", QuadURLVersion),
		constant("sapp_jsutils_crate_version", SappJsutilsVersion),
		constant("crate_version", CrateVersion),
		recorder("__wbindgen_exn_store", CallExnStore, i32),
	}

	// Start refers to main by index, so it is appended once main has one.
	m.Funcs = append(m.Funcs, Func{
		Export: "__wbindgen_start",
		Type:   void,
		Body: Ops(
			increment(StartCalls),
			I32Const(0), I32Const(0), Call(m.FuncIndex("main")), Drop(),
		),
	})

	return m
}

// Empty returns a module with no sections at all.
func Empty() []byte {
	return (&Module{}).Encode()
}

func recorder(export string, id int32, params []byte) Func {
	return Func{
		Export: export,
		Type:   FuncType{Params: params},
		Body:   record(id, params...),
	}
}

func record(id int32, params ...byte) []byte {
	body := Ops(I32Const(0), I32Const(id), I32Store(MailboxCall))
	for i, p := range params {
		offset := uint32(MailboxArgs + 4*i)
		store := I32Store(offset)
		if p == F32 {
			store = F32Store(offset)
		}
		body = Ops(body, I32Const(0), LocalGet(uint32(i)), store)
	}
	return body
}

func increment(addr uint32) []byte {
	return Ops(I32Const(0), I32Const(0), I32Load(addr), I32Const(1), I32Add(), I32Store(addr))
}

func constant(export string, v int32) Func {
	return Func{
		Export: export,
		Type:   FuncType{Results: i32},
		Body:   I32Const(v),
	}
}
