package main

import (
	"net/http"

	"farmlink-be/internal/catalog"
	"farmlink-be/internal/config"
	"farmlink-be/internal/db"
	"farmlink-be/internal/httpx"
	"farmlink-be/internal/inventory"
	"farmlink-be/internal/logger"
	"farmlink-be/internal/metrics"
	"farmlink-be/internal/order"
	"farmlink-be/internal/payment"
	"farmlink-be/internal/pricing"
	"farmlink-be/internal/reputation"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	stats := &metrics.Registry{}

	catalogRepo := catalog.NewRepository(database)
	ledger := inventory.NewPostgresLedger(database)
	scores := reputation.NewAggregator(database)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(
		orderRepo,
		catalogRepo,
		ledger,
		scores,
		order.DefaultTransitionPolicy,
		pricing.DefaultParams(),
		stats,
	)

	webhook := payment.NewWebhookHandler(cfg.WebhookSecret, orderSvc)
	handler := httpx.NewHandler(orderSvc, catalogRepo, scores, stats)
	router := httpx.NewRouter(handler, webhook, cfg.JWTSecret)

	logger.L().Info("🚀 farmlink server running", zap.String("port", cfg.AppPort))
	if err := http.ListenAndServe(":"+cfg.AppPort, router); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
