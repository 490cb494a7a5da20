package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/simple-gravity/gravity-host/pkg/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Loader handles loading bundles from disk.
type Loader struct {
	initr  *bindings.Initializer
	logger *zap.Logger
}

// NewLoader creates a new bundle loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		initr:  bindings.NewInitializer(runtime, logger),
		logger: logger.With(zap.String("component", "bundle-loader")),
	}
}

// LoadBundle loads a single bundle from a directory. The game binary must
// satisfy the export table.
func (l *Loader) LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	l.logger.Debug("Loading bundle", zap.String("dir", dir))

	// Parse manifest
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading bundle",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
	)

	// Compile Wasm module (uses internal caching)
	compiled, report, err := l.initr.Compile(ctx, bindings.FromPath(manifest.WasmPath()), nil)
	if err != nil {
		return nil, &BundleLoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	var script *protocol.Script
	if path := manifest.ScriptPath(); path != "" {
		script, err = protocol.LoadScript(path)
		if err != nil {
			return nil, &BundleLoadError{
				BundleName: manifest.Name,
				Err:        err,
			}
		}
	}

	bundle := &Bundle{
		Manifest: manifest,
		Compiled: compiled,
		Report:   report,
		Script:   script,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Bundle loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.Strings("absent_optional", report.Absent),
	)

	return bundle, nil
}

// DiscoverBundles scans directories for bundles. A directory that is itself
// a bundle is loaded directly; otherwise its subdirectories are tried.
// Bundles that fail to load are skipped and their errors combined into the
// second return value.
func (l *Loader) DiscoverBundles(ctx context.Context, paths []string) ([]*Bundle, error) {
	var bundles []*Bundle
	var errs error

	for _, basePath := range paths {
		l.logger.Debug("Scanning bundle directory", zap.String("path", basePath))

		if _, err := os.Stat(filepath.Join(basePath, ManifestFile)); err == nil {
			bundle, err := l.LoadBundle(ctx, basePath)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			bundles = append(bundles, bundle)
			continue
		}

		// Read subdirectories
		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Bundle path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as a bundle
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			bundleDir := filepath.Join(basePath, entry.Name())

			bundle, err := l.LoadBundle(ctx, bundleDir)
			if err != nil {
				l.logger.Error("Failed to load bundle",
					zap.String("dir", bundleDir),
					zap.Error(err),
				)
				errs = multierr.Append(errs, err)
				continue
			}

			bundles = append(bundles, bundle)
		}
	}

	// If we found some bundles but had errors, log warning but continue
	if len(bundles) > 0 && errs != nil {
		l.logger.Warn("Some bundles failed to load",
			zap.Int("loaded", len(bundles)),
			zap.Int("failed", len(multierr.Errors(errs))),
		)
	}

	// If no bundles loaded, return error
	if len(bundles) == 0 {
		return nil, multierr.Append(&NoBundlesFoundError{Paths: paths}, errs)
	}

	return bundles, errs
}
