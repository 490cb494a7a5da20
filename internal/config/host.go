package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GRAVITY_FRAME_FPS=30.
const EnvPrefix = "GRAVITY"

type HostConfig struct {
	// Module is the game binary run when no bundle is named.
	Module      string            `mapstructure:"module"`
	BundlePaths []string          `mapstructure:"bundle_paths"`
	LogLevel    string            `mapstructure:"log_level"`
	Script      string            `mapstructure:"script"`
	QueueSize   int               `mapstructure:"queue_size"`
	Window      WindowConfig      `mapstructure:"window"`
	Frame       FrameConfig       `mapstructure:"frame"`
	Assets      AssetsConfig      `mapstructure:"assets"`
	Crates      map[string]string `mapstructure:"crates"`
	Wasm        WasmConfig        `mapstructure:"wasm"`
}

// WindowConfig is the canvas size reported to the game at start.
type WindowConfig struct {
	Width  int32  `mapstructure:"width"`
	Height int32  `mapstructure:"height"`
	Title  string `mapstructure:"title"`
}

// FrameConfig drives the frame loop.
type FrameConfig struct {
	FPS int `mapstructure:"fps"`
	// Stop after this many frames. Zero runs until cancelled.
	MaxFrames uint64 `mapstructure:"max_frames"`
}

// AssetsConfig tells fs_load_file where game files live. A non-empty
// BaseURL takes precedence over Root.
type AssetsConfig struct {
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Limit for a single guest call such as one frame.
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
}

// RuntimeConfig converts c for wasm.NewRuntime.
func (c WasmConfig) RuntimeConfig() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:  c.MemoryPages,
		DebugEnabled: c.Debug,
		CacheDir:     c.CacheDir,
		MaxInstances: c.MaxInstances,
	}
}

// Interval returns the time between frames.
func (c FrameConfig) Interval() time.Duration {
	if c.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FPS)
}

// Validate checks values viper cannot type check.
func (c *HostConfig) Validate() error {
	switch {
	case c.Frame.FPS <= 0:
		return fmt.Errorf("frame.fps must be positive, got %d", c.Frame.FPS)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	case c.Wasm.ExecutionTimeout < 0:
		return fmt.Errorf("wasm.execution_timeout must not be negative, got %v", c.Wasm.ExecutionTimeout)
	}
	return nil
}

func LoadHostConfig(configPath string) (*HostConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("module", "simple_gravity_bg.wasm")
	v.SetDefault("bundle_paths", []string{"./games"})
	v.SetDefault("log_level", "info")
	v.SetDefault("script", "")
	v.SetDefault("queue_size", 256)
	v.SetDefault("window.width", 800)
	v.SetDefault("window.height", 600)
	v.SetDefault("window.title", "simple gravity")
	v.SetDefault("frame.fps", 60)
	v.SetDefault("frame.max_frames", 0)
	v.SetDefault("assets.root", ".")
	v.SetDefault("assets.base_url", "")
	v.SetDefault("crates", map[string]string{})

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", "250ms")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
