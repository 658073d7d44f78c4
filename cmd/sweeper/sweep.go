package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Expirer is implemented by lifecycle.Engine.
type Expirer interface {
	ExpireOverdue(ctx context.Context, dryRun bool) (int, error)
}

type buildFunc func(ctx context.Context, logger zerolog.Logger) (Expirer, error)

func newApp(build buildFunc, logger zerolog.Logger) *cli.App {
	return &cli.App{
		Name:  "sweeper",
		Usage: "auto-reject orders past their seller approval deadline",
		Commands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "scan pending orders and expire overdue ones",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "once", Usage: "run a single pass and exit"},
					&cli.DurationFlag{Name: "interval", Value: time.Minute, Usage: "time between passes"},
					&cli.BoolFlag{Name: "dry-run", Usage: "count overdue orders without changing them"},
				},
				Action: func(c *cli.Context) error {
					interval := c.Duration("interval")
					if interval <= 0 {
						return cli.Exit("interval must be positive", 2)
					}
					e, err := build(c.Context, logger)
					if err != nil {
						return err
					}
					return sweep(c.Context, e, logger, c.Bool("once"), interval, c.Bool("dry-run"))
				},
			},
		},
	}
}

// sweep runs passes until ctx is done, or once. A failed pass is logged
// and retried on the next tick unless running once.
func sweep(ctx context.Context, e Expirer, logger zerolog.Logger, once bool, interval time.Duration, dryRun bool) error {
	pass := func() error {
		n, err := e.ExpireOverdue(ctx, dryRun)
		if err != nil {
			return err
		}
		logger.Info().Int("expired", n).Bool("dry_run", dryRun).Msg("sweep pass finished")
		return nil
	}

	if once {
		return pass()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := pass(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error().Err(err).Msg("sweep pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
