package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/cache"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/storage"
	"github.com/spec-kit/support-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	statsCache := cache.New(redis.Client, cfg.Redis.StatsCacheTTL)

	metrics := observability.NewMetrics()
	policy, err := auth.NewPolicy()
	if err != nil {
		logger.Fatal("failed to load role policy", zap.Error(err))
	}

	files, err := storage.NewDiskStore(cfg.App.UploadDir, int64(cfg.App.MaxUploadBytes))
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	dispatcherOpts := []events.Option{events.WithLogger(logger)}
	if cfg.Events.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.Events.NATSURL, cfg.App.Name)
		if err != nil {
			logger.Fatal("failed to connect nats", zap.Error(err))
		}
		defer nc.Drain() //nolint:errcheck
		dispatcherOpts = append(dispatcherOpts, events.WithForwarder(events.NewNATSForwarder(nc, cfg.Events.SubjectPrefix)))
		logger.Info("forwarding events to nats", zap.String("prefix", cfg.Events.SubjectPrefix))
	}
	dispatcher := events.NewInMemoryDispatcher(dispatcherOpts...)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	slaRepo := repository.NewSLARepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	deliveryQueue := worker.NewQueue(4, 256, cfg.Notification.WebhookTimeout*2, logger)
	notificationService := service.NewNotificationService(cfg.Notification, service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Dispatcher:       dispatcher,
		Queue:            deliveryQueue,
		Metrics:          metrics,
		Logger:           logger,
	})
	worker.StartNotificationWorker(ctx, notificationService, deliveryQueue)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
		Revoker:           statsCache,
		ResetNotifier:     notificationService,
		Logger:            logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:       userRepo,
		AttachmentRepo: attachmentRepo,
		Files:          files,
		Stats:          statsCache,
		Policy:         policy,
		BcryptCost:     cfg.Auth.BcryptCost,
		Logger:         logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		HistoryRepo:    historyRepo,
		SLARepo:        slaRepo,
		Files:          files,
		Stats:          statsCache,
		Policy:         policy,
		SLA:            cfg.SLA,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		Stats:       statsCache,
		Policy:      policy,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		TicketRepo: ticketRepo,
		SLARepo:    slaRepo,
		StatsRepo:  statsRepo,
		Cache:      statsCache,
		Policy:     policy,
		Logger:     logger,
	})

	scanner := worker.NewSLAScanner(slaRepo, dispatcher, metrics, logger)
	scheduler, err := worker.StartSLAWorker(cfg.SLA.ScanCron, scanner, logger)
	if err != nil {
		logger.Fatal("invalid SLA_SCAN_CRON", zap.String("spec", cfg.SLA.ScanCron), zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, statsCache, logger)

	app := httptransport.NewApp(httptransport.AppOptions{
		Name:           cfg.App.Name,
		MaxUploadBytes: cfg.App.MaxUploadBytes,
		Logger:         logger,
		Metrics:        metrics,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Stats:          handlers.NewStatsHandler(statsService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		Policy:         policy,
		Metrics:        metrics,
		UploadDir:      files.Dir(),
		RateLimit:      cfg.RateLimit,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	deliveryQueue.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
