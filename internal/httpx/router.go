package httpx

import (
	"net/http"

	"farmlink-be/internal/logger"
	"farmlink-be/internal/middleware"
	"farmlink-be/internal/payment"
	"farmlink-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

// NewRouter assembles the HTTP surface. The payment webhook is mounted
// outside the API tree: providers authenticate with a body signature, not a
// bearer token.
func NewRouter(h *Handler, webhook *payment.WebhookHandler, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.AuthMiddleware(jwtSecret))

	r.Get("/health", h.Health)
	r.Post("/webhook/payment", webhook.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/sellers/{sellerID}/score", h.GetSellerScore)

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(utils.RoleBuyer)).Post("/", h.CreateOrder)
			r.With(middleware.RequireRole()).Get("/", h.ListOrders)
			r.With(middleware.RequireRole()).Get("/{orderID}", h.GetOrder)
			r.With(middleware.RequireRole()).Patch("/{orderID}/status", h.UpdateStatus)
			r.With(middleware.RequireRole(utils.RoleSeller, utils.RoleAdmin)).Patch("/{orderID}/delivery", h.UpdateDelivery)
			r.With(middleware.RequireRole(utils.RoleBuyer)).Post("/{orderID}/rating", h.RateOrder)
		})

		r.With(middleware.RequireRole(utils.RoleAdmin)).Get("/stats", h.Stats)
	})

	return r
}
