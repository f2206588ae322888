package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazelmarket/checkout/internal/service"
	"github.com/hazelmarket/checkout/pkg/health"
	"github.com/hazelmarket/checkout/pkg/middleware"
)

// NewRouter creates a chi router with all checkout service routes registered.
func NewRouter(
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("checkout"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	checkoutHandler := NewCheckoutHandler(checkoutService, logger)

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// The gateway return URL carries no shopper session.
		r.Get("/return", checkoutHandler.ResumeSettlement)

		r.Group(func(r chi.Router) {
			r.Use(ShopperID)

			r.Post("/", checkoutHandler.StartCheckout)
			r.Get("/{id}", checkoutHandler.GetDraft)
			r.Put("/{id}/shipping", checkoutHandler.SubmitShipping)
			r.Get("/{id}/shipping-methods", checkoutHandler.QuoteShippingMethods)
			r.Put("/{id}/shipping-method", checkoutHandler.SubmitShippingMethod)
			r.Put("/{id}/billing", checkoutHandler.SubmitBilling)
			r.Put("/{id}/payment", checkoutHandler.SubmitPayment)
			r.Post("/{id}/coupon", checkoutHandler.ApplyCoupon)
			r.Delete("/{id}/coupon", checkoutHandler.RemoveCoupon)
			r.Get("/{id}/summary", checkoutHandler.GetSummary)
			r.Post("/{id}/back", checkoutHandler.Back)
			r.Post("/{id}/confirm", checkoutHandler.ConfirmOrder)
			r.Post("/{id}/cancel", checkoutHandler.CancelCheckout)
		})
	})

	return r
}
