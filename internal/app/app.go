// Package app wires the stores and adapters shared by the binaries.
package app

import (
	"github.com/rs/zerolog"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/catalog"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/config"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/payment"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

// Settings converts configuration into engine settings.
func Settings(cfg config.Config) lifecycle.Settings {
	fee, threshold := cfg.Fees()
	return lifecycle.Settings{
		Pricing:              pricing.NewRules(fee, threshold),
		Currency:             cfg.Currency,
		CancellationWindow:   cfg.CancellationWindow,
		SellerApprovalWindow: cfg.SellerApprovalWindow,
		PaymentFailurePolicy: cfg.PaymentFailurePolicy,
	}
}

// NewEngine wires the lifecycle engine to DynamoDB, Razorpay, SQS and CloudWatch.
func NewEngine(cfg config.Config, clients *aws.AWSClients, logger zerolog.Logger) *lifecycle.Engine {
	return lifecycle.NewEngine(
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		catalog.NewStore(clients.DynamoDB, cfg.SellersTable, cfg.ProductsTable),
		payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Settings(cfg),
		logger,
		lifecycle.WithNotifier(notifications.NewDispatcher(aws.NewPublisher(clients.SQS, cfg.QueueURL))),
		lifecycle.WithMetrics(aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)),
	)
}
