package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lovenda/veil/pkg/api"
	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/config"
	"github.com/lovenda/veil/pkg/middleware"
	"github.com/lovenda/veil/pkg/observability"
	"github.com/lovenda/veil/pkg/weddings"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		return err
	}

	logger := observability.NewLogger(cfg.Observability.ParsedLogLevel(), os.Stdout)
	logger.WithField("version", observability.Version).Info("Starting veild")

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The cache and rate limiter fail open, so a Redis outage at
			// boot is not fatal.
			logger.WithError(err).Warn("Redis unreachable at startup")
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: observability.Version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		return err
	}

	var cache *weddings.PermissionCache
	if cfg.Cache.Enabled {
		cache = weddings.NewPermissionCache(cfg.Cache.Size, cfg.Cache.TTL, redisClient, metrics, logger)
	}

	service := weddings.NewPostgresService(db, logger, cache)
	tokenManager := auth.NewTokenManager(db)

	var verifier *auth.IDTokenVerifier
	if cfg.Auth.OIDCIssuer != "" {
		verifier, err = auth.NewIDTokenVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCAudience)
		if err != nil {
			logger.WithError(err).Error("Failed to configure OIDC verifier")
			return err
		}
		logger.WithField("issuer", cfg.Auth.OIDCIssuer).Info("OIDC verification enabled")
	}
	authenticator := auth.NewAuthenticator(tokenManager, verifier)

	var loginFlow *auth.OIDCFlow
	if cfg.Auth.OIDCClientID != "" {
		loginFlow, err = auth.NewOIDCFlow(ctx, auth.OIDCFlowConfig{
			IssuerURL:    cfg.Auth.OIDCIssuer,
			ClientID:     cfg.Auth.OIDCClientID,
			ClientSecret: cfg.Auth.OIDCClientSecret,
			RedirectURL:  cfg.Auth.OIDCRedirectURL,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to configure browser login")
			return err
		}
		logger.Info("Browser login enabled")
	}

	auditLogger, err := buildAuditLogger(cfg, db)
	if err != nil {
		logger.WithError(err).Error("Failed to configure audit logging")
		return err
	}
	if auditLogger != nil {
		defer auditLogger.Close()
		service.SetAuditLogger(auditLogger)
	}

	var limiter *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = middleware.NewRateLimitMiddleware(
			middleware.NewDistributedRateLimiter(redisClient, cfg.RateLimit, "veil:ratelimit"),
			logger)
		logger.WithField("requests_per_window", cfg.RateLimit.RequestsPerWindow).Info("Rate limiting enabled")
	}

	serverOpts := api.Options{
		Service:       service,
		TokenManager:  tokenManager,
		Authenticator: authenticator,
		Metrics:       metrics,
		AuditLogger:   auditLogger,
		Logger:        logger,
		RateLimiter:   limiter,
	}
	// A typed nil in the interface field would read as enabled.
	if loginFlow != nil {
		serverOpts.OIDCFlow = loginFlow
	}
	server := api.NewServer(serverOpts)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	sweeper := startSweeper(service, tokenManager, db, metrics, logger)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		sweeper.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		return err
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := weddings.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database migrations applied")
	return db, nil
}

func buildAuditLogger(cfg *config.Config, db *sql.DB) (audit.Logger, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}

	loggers := []audit.Logger{audit.NewDBLogger(db)}
	if cfg.Audit.LogFile != "" {
		fileLogger, err := audit.NewFileLogger(cfg.Audit.LogFile)
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fileLogger)
	}
	if len(loggers) == 1 {
		return loggers[0], nil
	}
	return audit.NewMultiLogger(loggers...), nil
}

// startSweeper schedules the hourly cleanup of expired invitations and API
// tokens, plus the periodic sampling of the connection and business gauges.
func startSweeper(service *weddings.PostgresService, tokens *auth.TokenManager, db *sql.DB, metrics *observability.Metrics, logger *observability.Logger) *cron.Cron {
	c := cron.New()
	c.AddFunc("@hourly", func() {
		defer observability.RecoverPanic(logger, "invitation sweep")
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if n, err := service.PurgeExpiredInvitations(ctx); err != nil {
			logger.WithError(err).Error("Failed to purge expired invitations")
		} else if n > 0 {
			logger.WithField("purged", n).Info("Purged expired invitations")
		}

		if n, err := tokens.CleanupExpiredTokens(ctx); err != nil {
			logger.WithError(err).Error("Failed to clean up expired tokens")
		} else if n > 0 {
			logger.WithField("cleaned", n).Info("Cleaned up expired tokens")
		}
	})
	if metrics != nil {
		c.AddFunc("@every 1m", func() {
			defer observability.RecoverPanic(logger, "gauge sample")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			dbStats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(dbStats.InUse))
			metrics.DBConnectionsIdle.Set(float64(dbStats.Idle))

			st, err := service.Stats(ctx)
			if err != nil {
				logger.WithError(err).Error("Failed to sample business gauges")
				return
			}
			metrics.WeddingsTotal.Set(float64(st.ActiveWeddings))
			metrics.PendingInvitationsTotal.Set(float64(st.PendingInvitations))
		})
	}
	c.Start()
	return c
}
