// Command sweeper auto-rejects orders whose seller approval deadline has
// passed. The API already does this lazily on every read; running the
// sweeper only makes overdue orders show up as cancelled without anyone
// touching them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/app"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/config"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("deadline-sweeper", "info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New("deadline-sweeper", cfg.LogLevel)

	build := func(ctx context.Context, logger zerolog.Logger) (Expirer, error) {
		clients, err := aws.NewAWSClients(ctx, aws.Options{Region: cfg.AWSRegion, EndpointOverride: cfg.AWSEndpointOverride})
		if err != nil {
			return nil, err
		}
		return app.NewEngine(cfg, clients, logger), nil
	}

	if err := newApp(build, logger).RunContext(ctx, os.Args); err != nil {
		logger.Fatal().Err(err).Msg("sweeper failed")
	}
}
