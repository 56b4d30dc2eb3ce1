package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/winestore/internal/service"
	"github.com/utafrali/winestore/pkg/health"
	"github.com/utafrali/winestore/pkg/middleware"
)

const serviceName = "storefront"

// RouterOptions holds the HTTP settings that come from configuration.
type RouterOptions struct {
	PprofCIDRs     []string
	CORS           middleware.CORSConfig
	Session        middleware.SessionConfig
	CatalogMaxAge  int
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	cartService *service.CartService,
	catalogService *service.CatalogService,
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	opts RouterOptions,
) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(opts.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Session(opts.Session))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(opts.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, opts.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)
	catalogHandler := NewCatalogHandler(catalogService, logger)
	checkoutHandler := NewCheckoutHandler(checkoutService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Notifications)

		r.Route("/products", func(r chi.Router) {
			if opts.CatalogMaxAge > 0 {
				r.Use(middleware.CacheControl(opts.CatalogMaxAge))
			}
			r.Get("/", catalogHandler.ListProducts)
			r.Get("/{productId}", catalogHandler.GetProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(ContentTypeJSON)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Post("/items/{productId}/increment", cartHandler.IncrementItem)
			r.Post("/items/{productId}/decrement", cartHandler.DecrementItem)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.With(middleware.NoStore, ContentTypeJSON).Post("/checkout", checkoutHandler.Checkout)
	})

	return r
}
