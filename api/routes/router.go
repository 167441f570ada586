package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketprep-backend/api/controllers"
	"github.com/angelmondragon/marketprep-backend/api/middleware"
	"github.com/angelmondragon/marketprep-backend/internal/auth"
	"github.com/angelmondragon/marketprep-backend/internal/feedback"
	productsvc "github.com/angelmondragon/marketprep-backend/internal/products"
	"github.com/angelmondragon/marketprep-backend/internal/recommendations"
	"github.com/angelmondragon/marketprep-backend/internal/sales"
	"github.com/angelmondragon/marketprep-backend/internal/squaresync"
	"github.com/angelmondragon/marketprep-backend/internal/vendors"
	"github.com/angelmondragon/marketprep-backend/internal/venues"
	"github.com/angelmondragon/marketprep-backend/pkg/auth/session"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/metrics"
)

// Dependencies is everything the router mounts. Nil services answer 500 and
// nil Redis-backed collaborators disable the matching middleware.
type Dependencies struct {
	Sessions    session.AccessSessionChecker
	RateLimiter middleware.RateLimiter
	Idempotency middleware.IdempotencyStore
	Readiness   []controllers.ReadinessCheck

	// Gatherer backs /metrics; HTTPMetrics records route latency.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Auth            auth.Service
	Vendors         vendors.Service
	Products        productsvc.Service
	Venues          venues.Service
	Sales           sales.Service
	Recommendations recommendations.Service
	Feedback        feedback.Service
	SquareSync      squaresync.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Tracing(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
		cfg.RateLimit.RegisterEmailLimit,
	)
	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, deps.RateLimiter, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.VendorRateLimit("api", cfg.RateLimit.APIVendorLimit, cfg.RateLimit.APIWindow, deps.RateLimiter, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, logg))

			r.Route("/vendors/me", func(r chi.Router) {
				r.Get("/", controllers.VendorMe(deps.Vendors, logg))
				r.Delete("/", controllers.VendorErase(deps.Vendors, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ListProducts(deps.Products, logg))
				r.Post("/", controllers.CreateProduct(deps.Products, logg))
				r.Patch("/{productId}", controllers.UpdateProduct(deps.Products, logg))
				r.Delete("/{productId}", controllers.DeactivateProduct(deps.Products, logg))
			})

			r.Route("/venues", func(r chi.Router) {
				r.Get("/", controllers.ListVenues(deps.Venues, logg))
				r.Post("/", controllers.CreateVenue(deps.Venues, logg))
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", controllers.ListSales(deps.Sales, logg))
				r.Post("/", controllers.RecordSale(deps.Sales, logg))
			})

			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/", controllers.ListRecommendations(deps.Recommendations, logg))
				r.With(middleware.VendorRateLimit("generate", cfg.RateLimit.GenerateLimit, cfg.RateLimit.APIWindow, deps.RateLimiter, logg)).
					Post("/generate", controllers.GenerateRecommendations(deps.Recommendations, logg))
			})

			r.Route("/feedback", func(r chi.Router) {
				r.Post("/", controllers.SubmitFeedback(deps.Feedback, logg))
				r.Get("/stats", controllers.FeedbackStats(deps.Feedback, logg))
			})

			r.Post("/square/sync", controllers.SquareSync(deps.SquareSync, logg))
		})
	})

	return r
}
