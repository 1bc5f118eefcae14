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

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/handlers"
	"github.com/kograph/api/internal/platform/auth"
	"github.com/kograph/api/internal/platform/config"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
	"github.com/kograph/api/internal/platform/idempotency"
	"github.com/kograph/api/internal/platform/jobs"
	"github.com/kograph/api/internal/platform/observability"
	"github.com/kograph/api/internal/platform/secrets"
	platformstorage "github.com/kograph/api/internal/platform/storage"
	"github.com/kograph/api/internal/platform/telegram"
	"github.com/kograph/api/internal/repositories"
	firestoreRepo "github.com/kograph/api/internal/repositories/firestore"
	"github.com/kograph/api/internal/services"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger("kograph-api", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger),
		secrets.WithDefaultProject(os.Getenv("GOOGLE_CLOUD_PROJECT")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		_ = fetcher.Close()
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if cfg.Firestore.EmulatorHost != "" {
		// The Firestore client library reads this variable on dial.
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost)
		logger.Info("firestore emulator enabled", zap.String("host", cfg.Firestore.EmulatorHost))
	}

	provider, err := pfirestore.NewProvider(cfg.Firestore.ProjectID, pfirestore.WithDatabaseID(cfg.Firestore.DatabaseID))
	if err != nil {
		logger.Fatal("failed to initialise firestore provider", zap.Error(err))
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("failed to close firestore provider", zap.Error(err))
		}
	}()
	if _, err := provider.Client(ctx); err != nil {
		logger.Fatal("failed to connect to firestore", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise cloud storage client", zap.Error(err))
	}
	defer func() {
		_ = storageClient.Close()
	}()

	var proofStore *platformstorage.ProofStore
	if cfg.Storage.PaymentProofsBucket != "" {
		proofStore, err = platformstorage.NewProofStore(storageClient, cfg.Storage.PaymentProofsBucket,
			platformstorage.WithSignedURLTTL(cfg.Storage.SignedURLTTL),
		)
		if err != nil {
			logger.Fatal("failed to initialise proof store", zap.Error(err))
		}
	} else {
		logger.Warn("payment proofs bucket is not configured; proofs stay inline as data URIs")
	}

	orderRepo, err := firestoreRepo.NewOrderRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	ratingRepo, err := firestoreRepo.NewRatingRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise rating repository", zap.Error(err))
	}
	notificationRepo, err := firestoreRepo.NewNotificationRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise notification repository", zap.Error(err))
	}
	statsRepo, err := firestoreRepo.NewStatsRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise stats repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	testimonialRepo, err := firestoreRepo.NewTestimonialRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise testimonial repository", zap.Error(err))
	}
	settingsRepo, err := firestoreRepo.NewSettingsRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise settings repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}

	eventLogger := observability.EventLogger(logger)

	statsService, err := services.NewStatsService(services.StatsServiceDeps{
		Stats:  statsRepo,
		Logger: eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise stats service", zap.Error(err))
	}

	notificationService, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: notificationRepo,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise notification service", zap.Error(err))
	}

	var deliveryService services.DeliveryService
	var pubsubClient *pubsub.Client
	var deliveryTopic *pubsub.Topic
	if cfg.Telegram.BotToken != "" {
		telegramOpts := []telegram.ClientOption{}
		if cfg.Telegram.APIBaseURL != "" {
			telegramOpts = append(telegramOpts, telegram.WithBaseURL(cfg.Telegram.APIBaseURL))
		}
		sender := telegram.NewClient(cfg.Telegram.BotToken, telegramOpts...)

		deliveryDeps := services.DeliveryServiceDeps{
			Sender: sender,
			ChatID: cfg.Telegram.AdminChatID,
			Logger: eventLogger,
		}
		if proofStore != nil {
			deliveryDeps.Proofs = proofStore
		}
		if cfg.Delivery.Topic != "" {
			pubsubClient, err = pubsub.NewClient(ctx, cfg.Delivery.ProjectID)
			if err != nil {
				logger.Fatal("failed to initialise pubsub client", zap.Error(err))
			}
			deliveryTopic = pubsubClient.Topic(cfg.Delivery.Topic)
			publisher, err := jobs.NewPubSubDeliveryPublisher(deliveryTopic)
			if err != nil {
				logger.Fatal("failed to initialise delivery publisher", zap.Error(err))
			}
			deliveryDeps.Publisher = publisher
			logger.Info("delivery pipeline enabled",
				zap.String("project", cfg.Delivery.ProjectID),
				zap.String("topic", cfg.Delivery.Topic),
			)
		} else {
			logger.Info("delivery topic not configured; sending telegram messages in-process")
		}

		deliveryService, err = services.NewDeliveryService(deliveryDeps)
		if err != nil {
			logger.Fatal("failed to initialise delivery service", zap.Error(err))
		}
	} else {
		logger.Warn("telegram bot token is not configured; outbound deliveries are disabled")
	}
	defer func() {
		if deliveryTopic != nil {
			deliveryTopic.Stop()
		}
		if pubsubClient != nil {
			_ = pubsubClient.Close()
		}
	}()

	orderServiceDeps := services.OrderServiceDeps{
		Orders:         orderRepo,
		Stats:          statsService,
		Notifications:  notificationService,
		Deliveries:     deliveryService,
		UnitOfWork:     provider,
		VerifiedStatus: domain.OrderStatus(cfg.Orders.VerifiedOrderStatus),
		Logger:         eventLogger,
	}
	if proofStore != nil {
		orderServiceDeps.Proofs = proofStore
	}
	orderService, err := services.NewOrderService(orderServiceDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	ratingService, err := services.NewRatingService(services.RatingServiceDeps{
		Orders:        orderRepo,
		Ratings:       ratingRepo,
		Stats:         statsRepo,
		Notifications: notificationService,
		UnitOfWork:    provider,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise rating service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: productRepo,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	testimonialService, err := services.NewTestimonialService(services.TestimonialServiceDeps{
		Testimonials: testimonialRepo,
		Logger:       eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise testimonial service", zap.Error(err))
	}

	settingsService, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: settingsRepo,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise settings service", zap.Error(err))
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:  userRepo,
		Logger: eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	healthChecks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 5 * time.Second,
			Check:   provider.Healthy,
		},
	}
	if cfg.Storage.PaymentProofsBucket != "" {
		bucket := storageClient.Bucket(cfg.Storage.PaymentProofsBucket)
		healthChecks = append(healthChecks, repositories.DependencyCheck{
			Name:    "storage",
			Timeout: 5 * time.Second,
			Check: func(ctx context.Context) error {
				_, err := bucket.Attrs(ctx)
				return err
			},
		})
	}
	healthRepo := repositories.NewDependencyHealthRepository(healthChecks)

	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		Health: healthRepo,
		Build: services.BuildInfo{
			Version:   version,
			StartedAt: startedAt,
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier, auth.WithUserGetter(verifier))

	idempotencyStore, err := idempotency.NewFirestoreStore(provider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMW := idempotency.Middleware(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
	)

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go runIdempotencyCleanup(cleanupCtx, logger, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize)

	jwksCache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	oidcValidator := auth.NewOIDCValidator(jwksCache)
	internalAuth := oidcValidator.RequireOIDC(cfg.Security.OIDC.Audience, cfg.Security.OIDC.Issuers)

	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, idempotencyMW)
	ratingHandlers := handlers.NewRatingHandlers(authenticator, ratingService)
	testimonialHandlers := handlers.NewTestimonialHandlers(authenticator, testimonialService)
	publicHandlers := handlers.NewPublicHandlers(catalogService, testimonialService, settingsService, statsService)
	meHandlers := handlers.NewMeHandlers(authenticator, userService, notificationService, orderService)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(catalogService)
	adminSiteHandlers := handlers.NewAdminSiteHandlers(testimonialService, settingsService, statsService)
	healthHandlers := handlers.NewHealthHandlers(systemService)

	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firebase.ProjectID),
			observability.RequestLoggerMiddleware,
			observability.RecoveryMiddleware,
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithRatingRoutes(ratingHandlers.Routes),
		handlers.WithTestimonialRoutes(testimonialHandlers.Routes),
		handlers.WithAdminRoutes(handlers.AdminRoutes(authenticator,
			adminCatalogHandlers.Routes,
			adminSiteHandlers.Routes,
		)),
	}
	if deliveryService != nil {
		telegramHandlers := handlers.NewTelegramHandlers(authenticator, deliveryService)
		internalHandlers := handlers.NewInternalHandlers(deliveryService)
		routerOpts = append(routerOpts,
			handlers.WithTelegramRoutes(telegramHandlers.Routes),
			handlers.WithInternalMiddlewares(internalAuth),
			handlers.WithInternalRoutes(internalHandlers.Routes),
		)
	}

	router := handlers.NewRouter(routerOpts...)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("version", version))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		stopCleanup()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(timeoutCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			_ = srv.Close()
		}
	}

	logger.Info("server stopped")
}

// runIdempotencyCleanup periodically evicts expired idempotency records so the
// collection does not grow without bound.
func runIdempotencyCleanup(ctx context.Context, logger *zap.Logger, store *idempotency.FirestoreStore, interval time.Duration, batchSize int) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.CleanupExpired(ctx, now.UTC(), batchSize)
			if err != nil {
				logger.Warn("idempotency cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency records cleaned", zap.Int("removed", removed))
			}
		}
	}
}
