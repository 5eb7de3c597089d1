package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/learnhub/account-service/internal/api"
	"github.com/learnhub/account-service/internal/api/middleware"
	"github.com/learnhub/account-service/internal/core/ports"
	"github.com/learnhub/account-service/internal/core/service"
	"github.com/learnhub/account-service/internal/infrastructure/config"
	"github.com/learnhub/account-service/internal/infrastructure/db/mongo"
	"github.com/learnhub/account-service/internal/infrastructure/db/redis"
	"github.com/learnhub/account-service/internal/infrastructure/db/sqlstore"
	"github.com/learnhub/account-service/internal/infrastructure/http/handlers"
	"github.com/learnhub/account-service/internal/infrastructure/notify"
	"github.com/learnhub/account-service/internal/infrastructure/queue"
	"github.com/learnhub/account-service/pkg/logger"
)

// identityBackend is a store that can also answer the readiness probe.
type identityBackend interface {
	ports.IdentityStore
	Ping(ctx context.Context) error
}

func main() {
	// best-effort: a missing .env just means the real environment is used
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "account-service",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("account service stopped")
	}
	log.Info().Msg("goodbye")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info().Str("driver", cfg.Store.Driver).Msg("identity store ready")

	readiness := []handlers.Dependency{{Name: "store", Pinger: store}}
	hasher := service.BcryptHasher{Cost: cfg.Reset.BcryptCost}

	dispatcher := queue.NewDispatcher(cfg.Reset.NotifyWorkers, notify.NewLogMailer(cfg.Reset.LinkBase, log), log)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	opts := []service.PasswordResetOption{service.WithResetNotifier(dispatcher)}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, service.WithIssueThrottle(redis.NewIssueThrottle(rdb, cfg.Reset.Throttle)))
		readiness = append(readiness, handlers.Dependency{Name: "redis", Pinger: redis.Pinger{Client: rdb}})
		log.Info().Str("addr", cfg.Redis.Addr).Dur("window", cfg.Reset.Throttle).Msg("reset throttle enabled")
	}

	users := service.NewUserService(store, hasher, log)
	resets := service.NewPasswordResetService(store, hasher, clockwork.NewRealClock(), cfg.Reset.TTL, log, opts...)

	e := api.NewRouter(api.Dependencies{
		Users:     users,
		Resets:    resets,
		Resolver:  middleware.JWTResolver(cfg.JWTSecret),
		Readiness: readiness,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (identityBackend, func(), error) {
	switch cfg.Driver {
	case "mongo":
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB, AppName: "account-service"})
		if err != nil {
			return nil, nil, err
		}
		store := mongo.NewIdentityStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		store, err := sqlstore.Open(ctx, cfg.Driver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}
