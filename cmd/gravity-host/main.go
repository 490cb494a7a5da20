package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/config"
	"github.com/simple-gravity/gravity-host/internal/host"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "load configuration from `path`",
			EnvVars: []string{"GRAVITY_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "set logging `level` to debug, info, warn or error",
			EnvVars: []string{"GRAVITY_LOG_LEVEL"},
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "gravity-host",
		Usage:     "run simple gravity game binaries outside the browser",
		UsageText: "gravity-host [global options] command [command options] [module]",
		Version:   fmt.Sprintf("%s (%s, %s)", version, commit, date),
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			runCommand(),
			inspectCommand(),
			versionsCommand(),
			bundlesCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gravity-host:", err)
		os.Exit(1)
	}
}

// env is the state every command starts from.
type env struct {
	cfg    *config.HostConfig
	logger *zap.Logger
	host   *host.Host
}

func setup(c *cli.Context) (*env, error) {
	// Load configuration
	cfg, err := config.LoadHostConfig(c.Path("config"))
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger.Debug("Starting gravity-host",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	h, err := host.NewHost(c.Context, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("create host: %w", err)
	}

	return &env{cfg: cfg, logger: logger, host: h}, nil
}

func (e *env) close() {
	if err := e.host.Close(context.Background()); err != nil {
		e.logger.Error("Host shutdown failed", zap.Error(err))
	}
	e.logger.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", level, err)
	}

	var cfg zap.Config
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

// inputFromArg maps a command argument onto an init input: nothing for the
// configured module, "-" for stdin, a URL or a file path.
func inputFromArg(arg string) bindings.InitInput {
	switch {
	case arg == "":
		return nil
	case arg == "-":
		return bindings.FromReader("stdin", os.Stdin)
	case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
		return bindings.FromURL(arg)
	default:
		return bindings.FromPath(arg)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(ctx context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
