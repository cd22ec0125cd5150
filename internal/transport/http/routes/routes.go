package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/authz"
	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/infra/config"
	"github.com/arklim/chat-account-api/internal/transport/http/handlers"
	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
	"github.com/arklim/chat-account-api/internal/transport/http/sitekey"
)

const apiPrefix = "/api/v1"

// Auth endpoints are mounted on the default site and on every site prefix.
var authPrefixes = []string{apiPrefix + "/auth", apiPrefix + "/:site/auth"}

// Rate limit rule names. Both auth mounts share them, so the site prefix does
// not multiply the budget.
const (
	limitLogin     = "auth_login_ip"
	limitRegister  = "auth_register_ip"
	limitRefresh   = "auth_refresh_ip"
	limitReset     = "password_reset_ip"
	limitTwoFactor = "two_factor_ip"
)

var (
	labelRoles       = []domain.Role{domain.RoleAdmin, domain.RoleAdminCS}
	accountReadRoles = []domain.Role{domain.RoleAdmin, domain.RoleAdminCS, domain.RoleSystemAdmin}
	accountSyncRoles = []domain.Role{domain.RoleSystemAdmin, domain.RoleAdmin}
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     handlers.AuthFlows
	Labels   handlers.LabelManager
	Accounts handlers.AccountDirectory
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config        *config.AppConfig
	Logger        *zap.Logger
	RateLimiter   *middleware.RateLimiter
	Authenticator middleware.Authenticator
	Sites         *sitekey.Resolver
	Services      ServiceSet
	Metrics       *prometheus.Registry
	Database      DatabaseChecker
	Cache         CacheChecker
	Directory     CacheChecker
	// Policy overrides DefaultPolicy. Routes it does not declare are not mounted.
	Policy *authz.Policy
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// route is one row of the API table. Its access rule lives in the policy.
type route struct {
	method  string
	path    string
	limit   string
	handler gin.HandlerFunc
}

// DefaultPolicy declares who may call each API route.
func DefaultPolicy() *authz.Policy {
	policy := authz.NewPolicy()

	public := authz.Rule{Public: true}
	unverified := authz.Rule{AllowUnverified: true}
	for _, prefix := range authPrefixes {
		policy.Declare(http.MethodPost, prefix+"/register", public)
		policy.Declare(http.MethodPost, prefix+"/login", public)
		policy.Declare(http.MethodPost, prefix+"/refresh-token", public)
		policy.Declare(http.MethodPost, prefix+"/forgot-password", public)
		policy.Declare(http.MethodPost, prefix+"/reset-password", public)
		policy.Declare(http.MethodPost, prefix+"/confirm-2fa", unverified)
		policy.Declare(http.MethodPost, prefix+"/register/confirm-2fa", unverified)
		policy.Declare(http.MethodGet, prefix+"/current", unverified)
		policy.Declare(http.MethodPost, prefix+"/logout", unverified)
	}

	labels := authz.Rule{Roles: labelRoles}
	for _, method := range []string{http.MethodPost, http.MethodGet} {
		policy.Declare(method, apiPrefix+"/labels", labels)
	}
	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		policy.Declare(method, apiPrefix+"/labels/:id", labels)
	}
	policy.Declare(http.MethodPost, apiPrefix+"/accounts/sync", authz.Rule{Roles: accountSyncRoles})
	policy.Declare(http.MethodGet, apiPrefix+"/accounts/:id", authz.Rule{Roles: accountReadRoles})

	return policy
}

func withDefaults(deps Dependencies) Dependencies {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config == nil {
		deps.Config = &config.AppConfig{}
	}
	if deps.Sites == nil {
		deps.Sites = sitekey.NewResolver(sitekey.Cookies{}, nil, sitekey.Options{})
	}
	if deps.Policy == nil {
		deps.Policy = DefaultPolicy()
	}
	return deps
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	deps = withDefaults(deps)
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.ConfigureValidator()

	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if len(deps.Config.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	if deps.Metrics != nil {
		gatherer, registerer = deps.Metrics, deps.Metrics
	}
	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registerer}); err != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	} else {
		r.Use(metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 3)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	if deps.Directory != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("mongo", deps.Directory.HealthCheck))
	}
	health := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	limits := rateLimits(deps)
	requireAuth := middleware.RequireAuth(deps.Authenticator, deps.Sites, deps.Logger)

	for _, rt := range apiRoutes(deps) {
		rule, ok := deps.Policy.Rule(rt.method, rt.path)
		if !ok {
			deps.Logger.Error("route has no access rule, not mounted",
				zap.String("method", rt.method),
				zap.String("path", rt.path),
			)
			continue
		}

		chain := make([]gin.HandlerFunc, 0, 4)
		if limit, ok := limits[rt.limit]; ok {
			chain = append(chain, limit)
		}
		if !rule.Public {
			chain = append(chain, requireAuth, middleware.Authorize(rule))
		}
		chain = append(chain, rt.handler)
		r.Handle(rt.method, rt.path, chain...)
	}

	for _, declared := range deps.Policy.Routes() {
		rule, _ := deps.Policy.Rule(declared.Method, declared.Path)
		deps.Logger.Debug("route access",
			zap.String("method", declared.Method),
			zap.String("path", declared.Path),
			zap.Bool("public", rule.Public),
			zap.Bool("allow_unverified", rule.AllowUnverified),
			zap.Int("roles", len(rule.Roles)),
		)
	}

	return r
}

func apiRoutes(deps Dependencies) []route {
	auth := handlers.NewAuthHandler(deps.Services.Auth, deps.Sites, deps.Config.App.DeviceHeader, deps.Logger)
	labels := handlers.NewLabelHandler(deps.Services.Labels)
	accounts := handlers.NewAccountHandler(deps.Services.Accounts)

	authRoutes := []route{
		{http.MethodPost, "/register", limitRegister, auth.Register},
		{http.MethodPost, "/login", limitLogin, auth.Login},
		{http.MethodPost, "/confirm-2fa", limitTwoFactor, auth.ConfirmTwoFactor},
		{http.MethodPost, "/register/confirm-2fa", limitTwoFactor, auth.ConfirmRegistrationTwoFactor},
		{http.MethodPost, "/refresh-token", limitRefresh, auth.RefreshToken},
		{http.MethodPost, "/forgot-password", limitReset, auth.ForgotPassword},
		{http.MethodPost, "/reset-password", limitReset, auth.ResetPassword},
		{http.MethodGet, "/current", "", auth.Current},
		{http.MethodPost, "/logout", "", auth.Logout},
	}

	var out []route
	for _, prefix := range authPrefixes {
		for _, rt := range authRoutes {
			rt.path = prefix + rt.path
			out = append(out, rt)
		}
	}

	out = append(out,
		route{http.MethodPost, apiPrefix + "/labels", "", labels.Create},
		route{http.MethodGet, apiPrefix + "/labels", "", labels.List},
		route{http.MethodGet, apiPrefix + "/labels/:id", "", labels.Get},
		route{http.MethodPatch, apiPrefix + "/labels/:id", "", labels.Rename},
		route{http.MethodDelete, apiPrefix + "/labels/:id", "", labels.Delete},
		route{http.MethodPost, apiPrefix + "/accounts/sync", "", accounts.Sync},
		route{http.MethodGet, apiPrefix + "/accounts/:id", "", accounts.Get},
	)
	return out
}

func rateLimits(deps Dependencies) map[string]gin.HandlerFunc {
	out := make(map[string]gin.HandlerFunc)
	if deps.RateLimiter == nil {
		return out
	}

	cfg := deps.Config.RateLimit
	window := cfg.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	for name, limit := range map[string]int{
		limitLogin:     cfg.LoginMaxAttempts,
		limitRegister:  cfg.RegisterMaxAttempts,
		limitRefresh:   cfg.RefreshMaxAttempts,
		limitReset:     cfg.PasswordResetMaxAttempts,
		limitTwoFactor: cfg.TwoFactorMaxAttempts,
	} {
		if limit <= 0 {
			continue
		}
		out[name] = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       name,
			Limit:      limit,
			Window:     window,
			Identifier: middleware.ClientIPIdentifier(),
		})
	}
	return out
}
