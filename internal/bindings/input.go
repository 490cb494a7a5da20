package bindings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/simple-gravity/gravity-host/internal/wasm"
)

// DefaultModulePath is loaded when Init is given no input.
const DefaultModulePath = "simple_gravity_bg.wasm"

// maxPendingDepth bounds how many Pending inputs may wrap each other.
const maxPendingDepth = 8

// ErrPendingTooDeep is returned when Pending inputs nest deeper than Init follows.
var ErrPendingTooDeep = errors.New("pending init inputs nested too deeply")

// InitInput is anything Init can produce a compiled module from: a path,
// URL, request, response, byte buffer, reader, an already compiled module,
// or a Pending operation yielding one of those.
type InitInput interface {
	fmt.Stringer

	compile(ctx context.Context, loader *wasm.ModuleLoader, runtime *wasm.Runtime, opts *Options) (*wasm.CompiledModule, error)
}

// sourceInput compiles through the module loader, so repeated inits of the
// same source reuse the compiled module.
type sourceInput struct {
	desc   string
	source func(opts *Options) wasm.ModuleSource
}

func (s *sourceInput) String() string { return s.desc }

func (s *sourceInput) compile(ctx context.Context, loader *wasm.ModuleLoader, _ *wasm.Runtime, opts *Options) (*wasm.CompiledModule, error) {
	return loader.LoadModule(ctx, s.source(opts))
}

// FromPath loads the module from a file.
func FromPath(path string) InitInput {
	return &sourceInput{
		desc: "path " + path,
		source: func(*Options) wasm.ModuleSource {
			return &wasm.FileModuleSource{Path: path}
		},
	}
}

// FromURL fetches the module with a GET request using Options.HTTPClient.
func FromURL(url string) InitInput {
	return &sourceInput{
		desc: "url " + url,
		source: func(opts *Options) wasm.ModuleSource {
			return &wasm.URLModuleSource{URL: url, Client: opts.HTTPClient}
		},
	}
}

// FromRequest executes req using Options.HTTPClient and compiles the body.
func FromRequest(req *http.Request) InitInput {
	return &sourceInput{
		desc: "request " + req.Method + " " + req.URL.String(),
		source: func(opts *Options) wasm.ModuleSource {
			return &wasm.RequestModuleSource{Request: req, Client: opts.HTTPClient}
		},
	}
}

// FromResponse compiles the body of a response the caller already has. The
// body is closed.
func FromResponse(resp *http.Response) InitInput {
	src := &wasm.ResponseModuleSource{Response: resp}
	return &sourceInput{
		desc:   "response " + src.Name(),
		source: func(*Options) wasm.ModuleSource { return src },
	}
}

// FromBytes compiles an in-memory binary. Identical binaries share one
// compiled module.
func FromBytes(data []byte) InitInput {
	sum := sha256.Sum256(data)
	name := "sha256:" + hex.EncodeToString(sum[:8])
	return &sourceInput{
		desc: "bytes " + name,
		source: func(*Options) wasm.ModuleSource {
			return &wasm.MemoryModuleSource{ModuleName: name, Data: data}
		},
	}
}

// FromReader compiles the module read from r, cached under name.
func FromReader(name string, r io.Reader) InitInput {
	return &sourceInput{
		desc: "reader " + name,
		source: func(*Options) wasm.ModuleSource {
			return &wasm.ReaderModuleSource{ModuleName: name, Reader: r}
		},
	}
}

type compiledInput struct {
	module *wasm.CompiledModule
}

// FromCompiled instantiates a module compiled earlier by the same runtime.
func FromCompiled(module *wasm.CompiledModule) InitInput {
	return &compiledInput{module: module}
}

func (c *compiledInput) String() string { return "compiled " + c.module.Name }

func (c *compiledInput) compile(_ context.Context, _ *wasm.ModuleLoader, runtime *wasm.Runtime, _ *Options) (*wasm.CompiledModule, error) {
	if _, ok := runtime.GetCompiledModule(c.module.Name); !ok {
		runtime.StoreCompiledModule(c.module)
	}
	return c.module, nil
}

type pendingInput struct {
	resolve func(ctx context.Context) (InitInput, error)
}

// Pending defers choosing the input until Init runs. resolve may return
// another Pending input or nil for the default module.
func Pending(resolve func(ctx context.Context) (InitInput, error)) InitInput {
	return &pendingInput{resolve: resolve}
}

func (p *pendingInput) String() string { return "pending" }

func (p *pendingInput) compile(ctx context.Context, loader *wasm.ModuleLoader, runtime *wasm.Runtime, opts *Options) (*wasm.CompiledModule, error) {
	input, err := settle(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	return input.compile(ctx, loader, runtime, opts)
}

// settle follows Pending inputs and substitutes the default module for nil.
func settle(ctx context.Context, input InitInput, opts *Options) (InitInput, error) {
	for depth := 0; ; depth++ {
		if input == nil {
			return FromPath(opts.defaultPath()), nil
		}

		p, ok := input.(*pendingInput)
		if !ok {
			return input, nil
		}
		if depth == maxPendingDepth {
			return nil, ErrPendingTooDeep
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := p.resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("pending init input: %w", err)
		}
		input = next
	}
}
