package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/authguard/internal/api/http"
	"github.com/spec-kit/authguard/internal/api/http/handlers"
	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/domain"
	"github.com/spec-kit/authguard/internal/events"
	"github.com/spec-kit/authguard/internal/observability"
	"github.com/spec-kit/authguard/internal/repository"
	"github.com/spec-kit/authguard/internal/service"
	"github.com/spec-kit/authguard/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	provider, metrics, err := newMetrics(cfg.Metrics)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	limiter, err := openLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer limiter.close()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordAlgorithm, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	signingKey, err := cfg.Auth.SigningKey()
	if err != nil {
		return err
	}
	keys := auth.NewKeyRing(signingKey)
	tokens := auth.NewTokenManager(keys, cfg.Auth.RecognizedRoles, cfg.Auth.AccessTokenTTL)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Principals: store.Principals,
		Hasher:     hasher,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	keyService := service.NewKeyService(keys, dispatcher, logger)

	if err := bootstrapAdmin(ctx, cfg.Auth, authService, logger); err != nil {
		return err
	}

	mwOpts := []auth.MiddlewareOption{auth.WithRecorder(metrics)}
	if cfg.Auth.CookieName != "" {
		mwOpts = append(mwOpts, auth.WithCookie(cfg.Auth.CookieName))
	}
	authMiddleware := auth.NewMiddleware(auth.NewGuard(tokens), logger, mwOpts...)

	health := map[string]handlers.Pinger{"store": authService}
	if limiter.redis != nil {
		health["redis"] = limiter.redis
	}

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, health),
		Auth: handlers.NewAuthHandler(handlers.AuthHandlerDependencies{
			Auth:            authService,
			Limiter:         limiter.limiter,
			ThrottleBackend: cfg.Throttle.Backend,
			Cookie:          handlers.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
			Metrics:         metrics,
			Logger:          logger,
		}),
		Principals:     handlers.NewPrincipalsHandler(authService),
		Resources:      handlers.NewResourcesHandler(),
		AuthMiddleware: authMiddleware,
	})

	g, gctx := errgroup.WithContext(ctx)
	serve(gctx, g, app, cfg.App.Addr(), "api", logger)

	if provider != nil {
		metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
		metricsApp.Get("/metrics", adaptor.HTTPHandler(provider.Handler()))
		serve(gctx, g, metricsApp, cfg.Metrics.Addr(cfg.App.Host), "metrics", logger)
	}

	if cfg.Auth.JWTSecretFile != "" {
		g.Go(func() error {
			watchKeyRotation(gctx, cfg.Auth, keyService, logger)
			return nil
		})
	}

	return g.Wait()
}

// serve runs app until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, g *errgroup.Group, app *fiber.App, addr, name string, logger *zap.Logger) {
	g.Go(func() error {
		logger.Info("listening", zap.String("server", name), zap.String("addr", addr))
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", zap.String("server", name))
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
}

// watchKeyRotation re-reads the secret file on SIGHUP. The outgoing key stays valid for
// verification until the next rotation.
func watchKeyRotation(ctx context.Context, cfg config.AuthConfig, keys *service.KeyService, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	rotateOnSignal(ctx, hup, cfg, keys, logger)
}

func rotateOnSignal(ctx context.Context, signals <-chan os.Signal, cfg config.AuthConfig, keys *service.KeyService, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			next, err := cfg.SigningKey()
			if err != nil {
				logger.Error("signing key rotation rejected", zap.Error(err))
				continue
			}
			if !keys.Rotate(ctx, next, true) {
				logger.Info("signing key unchanged", zap.Strings("kids", keys.KeyIDs()))
			}
		}
	}
}

func bootstrapAdmin(ctx context.Context, cfg config.AuthConfig, svc *service.AuthService, logger *zap.Logger) error {
	if cfg.BootstrapAdminIdentity == "" {
		return nil
	}
	created, err := svc.EnsurePrincipal(ctx, cfg.BootstrapAdminIdentity, cfg.BootstrapAdminPassword, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info("bootstrap admin created", zap.String("identity", service.NormalizeIdentity(cfg.BootstrapAdminIdentity)))
	}
	return nil
}

func newMetrics(cfg config.MetricsConfig) (*observability.Provider, *observability.Metrics, error) {
	if !cfg.Enabled {
		return nil, observability.NewNoopMetrics(), nil
	}
	provider, err := observability.NewProvider()
	if err != nil {
		return nil, nil, err
	}
	metrics, err := observability.NewMetrics(provider.MeterProvider(), cfg.Namespace)
	if err != nil {
		return nil, nil, err
	}
	return provider, metrics, nil
}
