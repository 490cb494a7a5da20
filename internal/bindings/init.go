package bindings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"go.uber.org/zap"
)

// Options configures Init.
type Options struct {
	// DefaultPath is loaded for a nil input. Defaults to DefaultModulePath.
	DefaultPath string

	// Imports receives the guest's import calls. Nil logs console output
	// and refuses file loads.
	Imports wasm.Imports

	// InstanceID names the instance. Empty generates a uuid.
	InstanceID string

	// SkipStart leaves __wbindgen_start for the caller.
	SkipStart bool

	// HTTPClient is used by URL and request inputs. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Timeout bounds every guest call made through the output. Zero means
	// no limit.
	Timeout time.Duration
}

func (o *Options) defaultPath() string {
	if o.DefaultPath == "" {
		return DefaultModulePath
	}
	return o.DefaultPath
}

// Initializer compiles, verifies and instantiates game binaries on one runtime.
type Initializer struct {
	runtime   *wasm.Runtime
	loader    *wasm.ModuleLoader
	instances *wasm.InstanceManager
	logger    *zap.Logger
}

// NewInitializer creates an initializer for runtime.
func NewInitializer(runtime *wasm.Runtime, logger *zap.Logger) *Initializer {
	return &Initializer{
		runtime:   runtime,
		loader:    wasm.NewModuleLoader(runtime, logger),
		instances: wasm.NewInstanceManager(runtime, logger),
		logger:    logger.With(zap.String("component", "bindings")),
	}
}

// Init runs an Initializer with a no-op logger.
func Init(ctx context.Context, runtime *wasm.Runtime, input InitInput, opts *Options) (*InitOutput, error) {
	return NewInitializer(runtime, zap.NewNop()).Init(ctx, input, opts)
}

// Compile resolves input and verifies the compiled module. A binary that
// fails verification is returned together with its report and a
// *SignatureMismatchError.
func (i *Initializer) Compile(ctx context.Context, input InitInput, opts *Options) (*wasm.CompiledModule, *Report, error) {
	if opts == nil {
		opts = &Options{}
	}

	input, err := settle(ctx, input, opts)
	if err != nil {
		return nil, nil, err
	}

	compiled, err := input.compile(ctx, i.loader, i.runtime, opts)
	if err != nil {
		return nil, nil, err
	}

	report, err := Verify(compiled)
	return compiled, report, err
}

// Init resolves input, compiles and verifies it, instantiates it with the
// host imports and then runs __wbindgen_start unless SkipStart is set.
func (i *Initializer) Init(ctx context.Context, input InitInput, opts *Options) (*InitOutput, error) {
	if opts == nil {
		opts = &Options{}
	}

	settled, err := settle(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	i.logger.Debug("Initializing game module", zap.Stringer("input", settled))

	compiled, report, err := i.Compile(ctx, settled, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instance, err := i.instances.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: compiled.Name,
		InstanceID: opts.InstanceID,
		Imports:    opts.Imports,
	})
	if err != nil {
		return nil, err
	}

	out := &InitOutput{
		instance: instance,
		compiled: compiled,
		report:   report,
		timeout:  opts.Timeout,
	}

	if !opts.SkipStart && instance.HasExport(gravity.ExportStart) {
		if err := out.Start(ctx); err != nil {
			closeErr := instance.Close(ctx)
			if closeErr != nil {
				i.logger.Warn("Failed to close instance after start failure", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("failed to start module '%s': %w", compiled.Name, err)
		}
	}

	i.logger.Info("Game module initialized",
		zap.String("module", compiled.Name),
		zap.String("instance_id", instance.ID),
		zap.Int("exports", len(report.Present)),
		zap.Strings("absent_optional", report.Absent),
	)

	return out, nil
}
