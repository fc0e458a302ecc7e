package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumera-social/lumera-backend/api/controllers"
	"github.com/lumera-social/lumera-backend/api/middleware"
	"github.com/lumera-social/lumera-backend/internal/auth"
	"github.com/lumera-social/lumera-backend/internal/purchases"
	"github.com/lumera-social/lumera-backend/internal/wallet"
	"github.com/lumera-social/lumera-backend/pkg/config"
	"github.com/lumera-social/lumera-backend/pkg/logger"
	"github.com/lumera-social/lumera-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              controllers.Pinger
	Redis           *redis.Client
	AuthService     auth.Service
	RegisterService auth.RegisterService
	WalletService   wallet.Service
	PurchaseService purchases.Service
	Metrics         prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": params.DB,
			"redis":    params.Redis,
		}))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, params.Redis, logg)).
			Post("/register", controllers.AuthRegister(params.RegisterService, params.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, params.Redis, logg)).
			Post("/login", controllers.AuthLogin(params.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/balance", controllers.TokenBalance(params.WalletService, logg))
			r.Get("/wallet-balance", controllers.TokenWalletBalance(params.WalletService, logg))
			r.Get("/transactions", controllers.TokenTransactions(params.WalletService, logg))
			r.Post("/deposit", controllers.TokenDeposit(params.WalletService, logg))
			r.Post("/withdraw", controllers.TokenWithdraw(params.WalletService, logg))
		})

		r.Post("/posts/{itemID}/unlock", controllers.UnlockItem(params.PurchaseService, logg))
		r.Get("/unlocks", controllers.UnlockList(params.PurchaseService, logg))

		r.Put("/wallet/address", controllers.WalletAddressUpdate(params.WalletService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/organization-balance", controllers.AdminOrganizationBalance(params.WalletService, logg))
			r.Get("/wallets", controllers.AdminUserWallets(params.WalletService, logg))
		})
	})

	return r
}
