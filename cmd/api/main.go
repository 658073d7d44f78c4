package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/app"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/config"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/handlers"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/idempotency"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/logging"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
)

func setupRouter(cfg handlers.HandlerConfig, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("orders-api", "info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New("orders-api", cfg.LogLevel)

	// amounts go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, aws.Options{Region: cfg.AWSRegion, EndpointOverride: cfg.AWSEndpointOverride})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init aws clients")
	}

	engine := app.NewEngine(cfg, clients, logger)

	r := setupRouter(handlers.HandlerConfig{
		Engine:        engine,
		Idempotency:   idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable),
		Notifications: notifications.NewStore(clients.DynamoDB, cfg.NotificationsTable),
		Logger:        logger,
	}, logger)

	// if RUN_LOCAL is true, run a local HTTP server for development.
	if cfg.RunLocal {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("running local server")
		if err := r.Run(cfg.ListenAddr); err != nil {
			logger.Fatal().Err(err).Msg("failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
