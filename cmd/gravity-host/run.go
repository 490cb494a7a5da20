package main

import (
	"context"
	"io"
	"os"

	"github.com/simple-gravity/gravity-host/internal/host"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a game until interrupted or the frame limit is reached",
		ArgsUsage: "[module path, URL or -]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bundle",
				Aliases: []string{"b"},
				Usage:   "run the bundle `name` instead of a module",
			},
			&cli.PathFlag{
				Name:  "script",
				Usage: "replay input events from `path`",
			},
			&cli.PathFlag{
				Name:  "events",
				Usage: "read JSON input events, one per line, from `path` (- for stdin)",
			},
			&cli.Uint64Flag{
				Name:  "max-frames",
				Usage: "stop after `n` frames",
			},
			&cli.IntFlag{
				Name:  "fps",
				Usage: "frames per second",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	if c.IsSet("script") {
		e.cfg.Script = c.Path("script")
	}
	if c.IsSet("max-frames") {
		e.cfg.Frame.MaxFrames = c.Uint64("max-frames")
	}
	if c.IsSet("fps") {
		e.cfg.Frame.FPS = c.Int("fps")
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext(c.Context, e.logger)
	defer cancel()

	var session *host.Session
	if name := c.String("bundle"); name != "" {
		session, err = e.host.OpenBundle(ctx, name)
	} else {
		session, err = e.host.Open(ctx, inputFromArg(c.Args().First()))
	}
	if err != nil {
		return err
	}
	defer session.Close(context.Background())

	feed, err := openFeed(c.Path("events"))
	if err != nil {
		return err
	}
	if feed != nil {
		defer feed.Close()
	}

	e.logger.Info("Running game",
		zap.String("instance", session.ID()),
		zap.Int("fps", e.cfg.Frame.FPS),
		zap.Uint64("max_frames", e.cfg.Frame.MaxFrames),
	)

	var r io.Reader
	if feed != nil {
		r = feed
	}
	return ignoreCanceled(session.Run(ctx, r))
}

func openFeed(path string) (io.ReadCloser, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return io.NopCloser(os.Stdin), nil
	default:
		return os.Open(path)
	}
}
