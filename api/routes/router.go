package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearledger/subpay/api/controllers"
	"github.com/clearledger/subpay/api/middleware"
	"github.com/clearledger/subpay/pkg/config"
	"github.com/clearledger/subpay/pkg/db"
	"github.com/clearledger/subpay/pkg/logger"
	"github.com/clearledger/subpay/pkg/metrics"
	pkgredis "github.com/clearledger/subpay/pkg/redis"
)

// PlanService combines the public and owner-gated plan surfaces.
type PlanService interface {
	controllers.PlanReader
	controllers.PlanAdmin
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *pkgredis.Client
	Metrics       *metrics.BillingMetrics
	Registry      prometheus.Gatherer
	Plans         PlanService
	Subscriptions controllers.SubscriptionService
	Upgrades      controllers.UpgradeAdmin
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.Metrics(d.Metrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.Logger, d.DB, d.Redis))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	// Reads are public; anyone can inspect the catalog and any account's
	// subscription state.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans/{planID}", controllers.PlanDetail(d.Plans, d.Logger))
		r.Get("/subscriptions/{address}", controllers.SubscriptionDetail(d.Subscriptions, d.Logger))
		r.Get("/subscriptions/{address}/due", controllers.SubscriptionDue(d.Subscriptions, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Config.JWT, d.Logger))
			r.Use(middleware.Idempotency(d.Redis, d.Logger))

			r.Post("/subscriptions", controllers.SubscriptionCreate(d.Subscriptions, d.Metrics, d.Logger))
			r.Post("/subscriptions/native", controllers.SubscriptionCreateNative(d.Subscriptions, d.Metrics, d.Logger))
			r.Post("/subscriptions/renew", controllers.SubscriptionRenew(d.Subscriptions, d.Metrics, d.Logger))
			r.Post("/subscriptions/renew/native", controllers.SubscriptionRenewNative(d.Subscriptions, d.Metrics, d.Logger))
			r.Post("/subscriptions/cancel", controllers.SubscriptionCancel(d.Subscriptions, d.Logger))
		})
	})

	// Owner-only surface; ownership itself is enforced against stored state,
	// auth here only establishes who is calling.
	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Config.JWT, d.Logger))
		r.Use(middleware.Idempotency(d.Redis, d.Logger))

		r.Post("/plans", controllers.AdminPlanCreate(d.Plans, d.Logger))
		r.Post("/plans/{planID}/status", controllers.AdminPlanSetStatus(d.Plans, d.Logger))
		r.Put("/treasury", controllers.AdminTreasuryUpdate(d.Plans, d.Logger))
		r.Get("/version", controllers.AdminVersion(d.Upgrades, d.Logger))
		r.Post("/upgrade", controllers.AdminUpgrade(d.Upgrades, d.Logger))
	})

	return r
}
