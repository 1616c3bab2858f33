package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/promotion-service/internal/service"
	"github.com/utafrali/promotion-service/pkg/health"
	"github.com/utafrali/promotion-service/pkg/middleware"
)

// NewRouter creates a chi router with all promotion service routes
// registered.
func NewRouter(
	promotionService *service.PromotionService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("promotion"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	promotionHandler := NewPromotionHandler(promotionService, logger)

	r.Route("/api/v1/promotions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", promotionHandler.CreatePromotion)
		r.Get("/", promotionHandler.ListPromotions)

		r.Get("/{id}", promotionHandler.GetPromotion)
		r.Put("/{id}", promotionHandler.UpdatePromotion)
		r.Delete("/{id}", promotionHandler.DeletePromotion)
		r.Post("/{id}/submit", promotionHandler.SubmitPromotion)
		r.Post("/{id}/activate", promotionHandler.ActivatePromotion)
		r.Post("/{id}/deactivate", promotionHandler.DeactivatePromotion)
	})

	r.Route("/api/v1/index", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/reindex", promotionHandler.Reindex)
	})

	return r
}
