package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/infra/config"
	"github.com/arklim/chat-account-api/internal/infra/database"
	kafkainfra "github.com/arklim/chat-account-api/internal/infra/kafka"
	"github.com/arklim/chat-account-api/internal/infra/logger"
	"github.com/arklim/chat-account-api/internal/infra/mailer"
	mongoinfra "github.com/arklim/chat-account-api/internal/infra/mongo"
	redisinfra "github.com/arklim/chat-account-api/internal/infra/redis"
	"github.com/arklim/chat-account-api/internal/infra/security"
	"github.com/arklim/chat-account-api/internal/infra/telemetry"
	mongorepo "github.com/arklim/chat-account-api/internal/repository/mongo"
	postgresrepo "github.com/arklim/chat-account-api/internal/repository/postgres"
	redisrepo "github.com/arklim/chat-account-api/internal/repository/redis"
	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
	"github.com/arklim/chat-account-api/internal/transport/http/routes"
	"github.com/arklim/chat-account-api/internal/transport/http/sitekey"
	"github.com/arklim/chat-account-api/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	mongo    *mongoinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App, log)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pool, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	keys, err := security.NewKeyProvider(cfg.JWT.Algorithm, cfg.JWT.Secret, cfg.JWT.KeyDirectory)
	if err != nil {
		return fmt.Errorf("init key provider: %w", err)
	}
	issuer, err := security.NewTokenIssuer(keys, security.TokenIssuerConfig{
		Issuer:          cfg.JWT.Issuer,
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: redisClient.Key("rate-limit"),
		TTL:       2 * window,
	})

	repos := postgresrepo.NewRepositories(pool)

	authService := usecase.NewAuthService(usecase.AuthDependencies{
		Accounts:   repos.Accounts,
		Transactor: repos.Accounts,
		Tokens:     issuer,
		Hasher:     hasher,
		Passwords:  security.DefaultPasswordPolicy(cfg.Password.MinLength, cfg.Password.MinStrengthScore),
		Codes:      security.NumericCodeGenerator{},
		Notifier:   a.notifier(),
		Events:     a.events(),
		RateLimits: rateLimitStore,
		Metrics:    telemetry.NewAuthMetrics(registry),
		ResetLinks: usecase.ResetLinks{UserPage: cfg.Frontend.UserPage, AdminPage: cfg.Frontend.AdminPage},
	}, domain.AuthPolicy{
		CodeTTL:     cfg.Auth.CodeTTL,
		TrustWindow: cfg.Auth.TrustWindow,
		CodeLength:  cfg.Auth.CodeLength,
	}, usecase.TwoFactorLimit{
		MaxAttempts: cfg.RateLimit.TwoFactorMaxAttempts,
		Window:      max(window, cfg.Auth.CodeTTL),
	}, log)

	labelService := usecase.NewLabelService(repos.Labels, repos.Accounts, log)
	accountService := usecase.NewAccountService(repos.Accounts, a.directory(ctx), log)

	deps := routes.Dependencies{
		Config:        cfg,
		Logger:        log,
		RateLimiter:   middleware.NewRateLimiter(rateLimitStore, log),
		Authenticator: authService,
		Sites:         siteResolver(cfg.Cookie),
		Metrics:       registry,
		Database:      pool,
		Cache:         redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Labels:   labelService,
			Accounts: accountService,
		},
	}
	if a.mongo != nil {
		deps.Directory = a.mongo
	}
	a.engine = routes.Register(deps)

	return nil
}

// notifier delivers over SMTP when enabled and logs mails otherwise.
func (a *Application) notifier() port.Notifier {
	if !a.cfg.SMTP.Enabled {
		a.logger.Info("smtp disabled, mails are logged")
		return mailer.NewLogNotifier(a.logger)
	}
	client, err := mailer.NewSMTPClient(a.cfg.SMTP)
	if err != nil {
		a.logger.Warn("failed to init smtp client, mails are logged", zap.Error(err))
		return mailer.NewLogNotifier(a.logger)
	}
	return mailer.NewSMTPNotifier(client, a.cfg.SMTP.MailFrom, a.logger)
}

func (a *Application) events() port.EventPublisher {
	cfg := a.cfg.Kafka
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger, cfg.TopicPrefix)
	}

	producer, err := kafkainfra.NewProducer(cfg, a.cfg.App, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger, cfg.TopicPrefix)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// directory syncs into MongoDB when enabled. A failed connection degrades to
// the no-op directory so authentication keeps working.
func (a *Application) directory(ctx context.Context) port.ChatUserDirectory {
	if !a.cfg.Mongo.Enabled {
		return mongorepo.NoopChatUserDirectory{}
	}
	client, err := mongoinfra.NewClient(ctx, a.cfg.Mongo, a.logger)
	if err != nil {
		a.logger.Warn("failed to connect to mongo, chat user sync disabled", zap.Error(err))
		return mongorepo.NoopChatUserDirectory{}
	}
	a.mongo = client
	return mongorepo.NewChatUserDirectory(client.Users())
}

func siteResolver(cfg config.CookieSettings) *sitekey.Resolver {
	sites := make(map[string]sitekey.Cookies, len(cfg.Sites))
	for name, site := range cfg.Sites {
		sites[name] = sitekey.Cookies{Access: site.Access, Refresh: site.Refresh}
	}
	return sitekey.NewResolver(
		sitekey.Cookies{Access: cfg.Default.Access, Refresh: cfg.Default.Refresh},
		sites,
		sitekey.Options{
			Secure:        cfg.Secure,
			Domain:        cfg.Domain,
			SameSite:      sitekey.ParseSameSite(cfg.SameSite),
			AccessMaxAge:  cfg.AccessMaxAge,
			RefreshMaxAge: cfg.RefreshMaxAge,
		},
	)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down account API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases every initialised dependency. The producer goes first so
// queued events flush before the process exits.
func (a *Application) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			a.logger.Warn("close mongo", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
}
