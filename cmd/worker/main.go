package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/config"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/logging"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("notifications-worker", "info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New("notifications-worker", cfg.LogLevel)

	clients, err := aws.NewAWSClients(context.Background(), aws.Options{Region: cfg.AWSRegion, EndpointOverride: cfg.AWSEndpointOverride})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init aws clients")
	}
	p := NewProcessor(notifications.NewStore(clients.DynamoDB, cfg.NotificationsTable), logger)

	// If RUN_LOCAL=true, process a single event from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"order.placed","order_id":"local-order-1","user_id":"local-user","seller_id":"local-seller","status":"Processing"}`
		}
		ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		if err := p.Handle(context.Background(), ev); err != nil {
			logger.Fatal().Err(err).Msg("local handler error")
		}
		return
	}

	lambda.Start(p.Handle)
}
