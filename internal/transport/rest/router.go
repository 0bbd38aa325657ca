package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
	"github.com/frahmantamala/payment-reconciliation/internal/transport/middleware"
	"github.com/frahmantamala/payment-reconciliation/pkg/metric"
)

// MetricsRoute exposes the prometheus handler at Path when Handler is set.
type MetricsRoute struct {
	Path    string
	Handler http.Handler
}

func RegisterAllRoutes(router *chi.Mux, healthHandler *HealthHandler, guard middleware.AccessGuard, transactionHandler *transaction.Handler, webhookHandler *transaction.WebhookHandler, httpMetrics metric.HTTP, metricsRoute MetricsRoute, logger *slog.Logger) {
	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger, httpMetrics))

	if metricsRoute.Handler != nil {
		router.Handle(metricsRoute.Path, metricsRoute.Handler)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/payments", func(pr chi.Router) {
			// Gateway notifications
			if webhookHandler != nil {
				pr.With(middleware.RequireGatewayToken(guard, logger)).
					Post("/webhook", webhookHandler.HandleSePayWebhook)
			}

			// Internal callers
			if transactionHandler != nil {
				pr.Group(func(ir chi.Router) {
					ir.Use(middleware.RequireInternalKey(guard, logger))
					ir.Post("/init", transactionHandler.Init)                    // POST /payments/init
					ir.Get("/{ref_code}", transactionHandler.GetByReferenceCode) // GET /payments/:ref_code
				})
			}
		})
	})
}
