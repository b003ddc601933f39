package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/repairdesk/repair-service/internal/api/http"
	"github.com/repairdesk/repair-service/internal/api/http/handlers"
	"github.com/repairdesk/repair-service/internal/auth"
	"github.com/repairdesk/repair-service/internal/cache"
	"github.com/repairdesk/repair-service/internal/config"
	"github.com/repairdesk/repair-service/internal/events"
	"github.com/repairdesk/repair-service/internal/mail"
	"github.com/repairdesk/repair-service/internal/observability"
	"github.com/repairdesk/repair-service/internal/persistence"
	"github.com/repairdesk/repair-service/internal/repository"
	"github.com/repairdesk/repair-service/internal/repository/memory"
	"github.com/repairdesk/repair-service/internal/seed"
	"github.com/repairdesk/repair-service/internal/service"
	"github.com/repairdesk/repair-service/internal/storage"
	"github.com/repairdesk/repair-service/internal/worker"
)

type repositories struct {
	users       repository.UserRepository
	equipment   repository.EquipmentRepository
	maintenance repository.MaintenanceRepository
	tickets     repository.RepairTicketRepository
	attachments repository.AttachmentRepository
	history     repository.TicketHistoryRepository
	resets      repository.PasswordResetRepository
}

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

	checks := []handlers.DependencyCheck{}
	var repos repositories
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = postgresRepositories(pg)
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Pinger: pg})
	} else {
		logger.Warn("POSTGRES_DSN not set; using in-memory storage, data will not survive a restart")
		repos = memoryRepositories(memory.NewStore())
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	checks = append(checks, handlers.DependencyCheck{Name: "redis", Pinger: redis})

	if cfg.App.SeedOnStart {
		fixture, err := seed.Load(cfg.App.SeedFile)
		if err != nil {
			logger.Fatal("failed to load seed fixture", zap.Error(err))
		}
		seeder := seed.NewSeeder(repos.users, repos.equipment, repos.tickets, cfg.Auth.BcryptCost, logger)
		if _, err := seeder.Seed(ctx, fixture); err != nil {
			logger.Fatal("failed to seed database", zap.Error(err))
		}
	}

	files, err := storage.NewFileStore(cfg.Storage.Path)
	if err != nil {
		logger.Fatal("failed to prepare attachment storage", zap.Error(err))
	}

	var sender worker.Sender
	if cfg.Email.Enabled() {
		sender = mail.NewSMTPMailer(cfg.Email)
	} else {
		logger.Info("SMTP_HOST not set; outgoing mail will be logged and dropped")
	}
	mailWorker := worker.NewMailWorker(sender, cfg.Email.QueueSize, logger)
	mailWorker.Start()
	defer mailWorker.Stop()

	dispatcher := events.NewInMemoryDispatcher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, logger)
		if err != nil {
			logger.Fatal("failed to create kafka publisher", zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
		publisher.Attach(dispatcher)
	}

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:          repos.users,
		PasswordResetRepo: repos.resets,
		Lockout:           cache.NewRedisLockoutStore(redis.Client, cfg.Cache.KeyPrefix),
		Mail:              mailWorker,
		Logger:            logger,
	})
	userService := service.NewUserService(repos.users, cfg.Auth.BcryptCost)
	equipmentService := service.NewEquipmentService(service.EquipmentDependencies{
		EquipmentRepo:   repos.equipment,
		TicketRepo:      repos.tickets,
		MaintenanceRepo: repos.maintenance,
		Cache:           cache.NewRedisLookupCache(redis.Client, cfg.Cache.KeyPrefix, cfg.Cache.LookupTTL()),
		Logger:          logger,
	})
	attachmentService := service.NewAttachmentService(cfg.Storage, service.AttachmentDependencies{
		TicketRepo:     repos.tickets,
		AttachmentRepo: repos.attachments,
		Files:          files,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	repairService := service.NewRepairService(service.RepairDependencies{
		TicketRepo:    repos.tickets,
		UserRepo:      repos.users,
		EquipmentRepo: repos.equipment,
		HistoryRepo:   repos.history,
		Attachments:   attachmentService,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		HistoryRepo: repos.history,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	notifications := worker.NewNotificationWorker(service.NewNotificationService(service.NotificationDependencies{
		TicketRepo: repos.tickets,
		UserRepo:   repos.users,
		Queue:      mailWorker,
		AdminEmail: cfg.Email.AdminEmail,
		Logger:     logger,
	}), cfg.Email.QueueSize, logger)
	notifications.Attach(dispatcher)
	notifications.Start()
	defer notifications.Stop()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimitBytes,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, checks...),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Equipment:      handlers.NewEquipmentHandler(equipmentService),
		Repairs:        handlers.NewRepairHandler(repairService, assignmentService),
		Attachments:    handlers.NewAttachmentsHandler(attachmentService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown did not complete cleanly", zap.Error(err))
	}
}

func postgresRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	return repositories{
		users:       repository.NewUserRepository(pool),
		equipment:   repository.NewEquipmentRepository(pool),
		maintenance: repository.NewMaintenanceRepository(pool),
		tickets:     repository.NewRepairTicketRepository(pool),
		attachments: repository.NewAttachmentRepository(pool),
		history:     repository.NewTicketHistoryRepository(pool),
		resets:      repository.NewPasswordResetRepository(pool),
	}
}

func memoryRepositories(store *memory.Store) repositories {
	return repositories{
		users:       store.Users(),
		equipment:   store.Equipment(),
		maintenance: store.Maintenance(),
		tickets:     store.Tickets(),
		attachments: store.Attachments(),
		history:     store.History(),
		resets:      store.PasswordResets(),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
