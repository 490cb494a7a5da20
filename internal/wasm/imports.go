package wasm

import (
	"context"
	"fmt"
	"sort"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// resolveImports instantiates the host modules a compiled guest imports
// from. Imports with a host implementation and a matching signature are
// wired to it. Everything else (GL, audio, DOM helpers) gets a stub that
// returns zero values, which is what a headless host can offer.
//
// Host modules are instantiated once per runtime. A later guest that needs
// a function missing from an existing host module fails with
// UnresolvedImportError.
func (r *Runtime) resolveImports(ctx context.Context, compiled *CompiledModule) error {
	r.hostMu.Lock()
	defer r.hostMu.Unlock()

	byModule := make(map[string][]api.FunctionDefinition)
	for _, def := range compiled.Module.ImportedFunctions() {
		module, _, _ := def.Import()
		byModule[module] = append(byModule[module], def)
	}

	modules := make([]string, 0, len(byModule))
	for module := range byModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	for _, module := range modules {
		defs := byModule[module]

		if provided, ok := r.hostModules[module]; ok {
			for _, def := range defs {
				_, name, _ := def.Import()
				if !provided[name] {
					return &UnresolvedImportError{Module: module, Name: name}
				}
			}
			continue
		}

		builder := r.runtime.NewHostModuleBuilder(module)
		provided := make(map[string]bool, len(defs))
		var stubbed []string

		for _, def := range defs {
			_, name, _ := def.Import()
			if provided[name] {
				continue
			}
			provided[name] = true

			if known, ok := gravity.LookupImport(module, name); ok {
				if known.Matches(def.ParamTypes(), def.ResultTypes()) && r.host.exportKnown(builder, module, name) {
					continue
				}
				r.logger.Warn("Import signature differs from host implementation, stubbing",
					zap.String("import", module+"."+name),
					zap.String("want", known.Signature()),
					zap.String("got", gravity.FormatSignature(def.ParamTypes(), def.ResultTypes())),
				)
			}

			builder.NewFunctionBuilder().
				WithGoModuleFunction(stub(def.ResultTypes()), def.ParamTypes(), def.ResultTypes()).
				Export(name)
			stubbed = append(stubbed, name)
		}

		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("failed to instantiate host module '%s': %w", module, err)
		}
		r.hostModules[module] = provided

		r.logger.Debug("Host module instantiated",
			zap.String("module", module),
			zap.Int("functions", len(provided)),
			zap.Strings("stubbed", stubbed),
		)
	}

	return nil
}

// stub returns a function that leaves zero in every result slot.
func stub(results []api.ValueType) api.GoModuleFunc {
	n := len(results)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		for i := 0; i < n; i++ {
			stack[i] = 0
		}
	}
}
