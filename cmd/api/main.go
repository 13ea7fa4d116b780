package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sman-go-api/internal/config"
	"github.com/noah-isme/sman-go-api/internal/database"
	"github.com/noah-isme/sman-go-api/internal/handler"
	"github.com/noah-isme/sman-go-api/internal/middleware"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
	"github.com/noah-isme/sman-go-api/internal/router"
	"github.com/noah-isme/sman-go-api/internal/service"
	cloud "github.com/noah-isme/sman-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Group{},
		&models.GroupMember{},
		&models.Phase{},
		&models.Criterion{},
		&models.EvaluationSubmission{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := nats.Connect(cfg.NATSAddress, nats.Name(cfg.AppName))
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	phaseRepo := repository.NewPhaseRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.EventChannelBase, natsConn, validate, logger)

	phaseService := service.NewPhaseService(phaseRepo, evaluationRepo, validate, logger)
	groupService := service.NewGroupService(groupRepo, validate, logger)
	evaluationService := service.NewEvaluationService(
		evaluationRepo,
		phaseRepo,
		groupRepo,
		validate,
		redisClient,
		cfg.StatusCacheTTL,
		cfg.AutosaveDebounce,
		cfg.SaveErrorWindow,
		notificationService,
		logger,
	)
	defer evaluationService.Close()
	customSubmissionService := service.NewCustomSubmissionService(
		evaluationRepo,
		phaseRepo,
		groupRepo,
		validate,
		uploader,
		cfg.MaxFileSubmissionBytes,
		notificationService,
		logger,
	)

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(consumerCtx)

	phaseHandler := handler.NewPhaseHandler(phaseService, validate, logger)
	groupHandler := handler.NewGroupHandler(groupService, validate, logger)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, customSubmissionService, validate, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, 30*time.Second)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		PhaseHandler:        phaseHandler,
		GroupHandler:        groupHandler,
		EvaluationHandler:   evaluationHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
