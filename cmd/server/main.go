package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridedispatch/internal/app"
	"ridedispatch/internal/config"
	"ridedispatch/internal/domain"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/messaging"
	internalRedis "ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/repository/memory"
	"ridedispatch/internal/repository/postgres"
	"ridedispatch/internal/service"
)

// backend bundles the storage selected by STORE_BACKEND.
type backend struct {
	repos       repository.Repositories
	tx          repository.Transactor
	index       service.LocationIndex
	cache       service.DriverCache
	redisClient redis.UniversalClient
	closers     []func() error
}

func (b *backend) close(log logrus.FieldLogger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.WithError(err).Warn("failed to close backend resource")
		}
	}
}

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log)
	gin.DefaultWriter = logger.Writer()
	gin.DefaultErrorWriter = logger.WriterLevel(logrus.ErrorLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	store, err := openBackend(ctx, cfg, nrApp, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open storage backend")
	}
	defer store.close(logger)

	publisher, err := newPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to rabbitmq")
	}
	defer publisher.Close()

	notifier := service.NewNotificationService(publisher, cfg.Dispatch.NotificationQueue, logger.WithField("component", "notifications"))
	notifier.Start()

	server := wireServer(store, notifier, nrApp, cfg, logger)

	// Start server in goroutine.
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	// Flush pending notifications before the publisher closes.
	notifier.Close()
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// openBackend connects the configured storage.
func openBackend(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, log *logrus.Logger) (*backend, error) {
	if cfg.StoreBackend == config.StoreMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &backend{
			repos: store.Repositories(),
			tx:    store,
			index: memory.NewLocationIndex(),
		}, nil
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, log)
	if err != nil {
		return nil, err
	}
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &backend{
		repos:       postgres.NewRepositories(db),
		tx:          postgres.NewTransactor(db),
		index:       internalRedis.NewLocationStore(redisClient),
		cache:       internalRedis.NewCacheStore(redisClient),
		redisClient: redisClient,
		closers:     []func() error{db.Close, redisClient.Close},
	}, nil
}

// newPublisher connects RabbitMQ, or logs events when no broker is configured.
func newPublisher(cfg config.RabbitMQConfig, log *logrus.Logger) (messaging.Publisher, error) {
	if cfg.URL == "" {
		log.Info("no RABBITMQ_URL set, logging events instead")
		return messaging.NewLogPublisher(log.WithField("component", "events")), nil
	}

	publisher, err := messaging.NewRabbitPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	log.WithField("exchange", cfg.Exchange).Info("connected to RabbitMQ")
	return publisher, nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(store *backend, notifier *service.NotificationService, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) *http.Server {
	// Initialize services.
	matchingService := service.NewMatchingService(store.repos.Drivers, store.index, cfg.Dispatch.SearchRadiusKm, cfg.Dispatch.MaxCandidates)
	driverService := service.NewDriverService(store.repos, store.tx, store.index, store.cache, notifier, log.WithField("component", "drivers"))
	promoService := service.NewPromoService(store.repos, store.tx)
	paymentService := service.NewPaymentService(store.repos, store.tx, promoService, service.NewLocalLedger(), domain.PaymentMethod(cfg.Payment.DefaultMethod))
	rideService := service.NewRideService(
		store.repos,
		store.tx,
		matchingService,
		driverService,
		paymentService,
		notifier,
		service.RideOptions{AutoSettle: cfg.Payment.AutoSettle},
		log.WithField("component", "rides"),
	)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		UserHandler:    handler.NewUserHandler(store.repos.Users),
		RideHandler:    handler.NewRideHandler(rideService),
		DriverHandler:  handler.NewDriverHandler(driverService, matchingService),
		PromoHandler:   handler.NewPromoHandler(promoService),
		PaymentHandler: handler.NewPaymentHandler(paymentService, rideService),
		RedisClient:    store.redisClient,
		NewRelicApp:    nrApp,
		Logger:         log.WithField("component", "http"),
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
