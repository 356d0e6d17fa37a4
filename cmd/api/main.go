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

	"github.com/noah-isme/astra-go-api/internal/config"
	"github.com/noah-isme/astra-go-api/internal/database"
	"github.com/noah-isme/astra-go-api/internal/handler"
	"github.com/noah-isme/astra-go-api/internal/middleware"
	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/repository"
	"github.com/noah-isme/astra-go-api/internal/router"
	"github.com/noah-isme/astra-go-api/internal/service"
	"github.com/noah-isme/astra-go-api/pkg/aplus"
	cloud "github.com/noah-isme/astra-go-api/pkg/cloudinary"
	"github.com/noah-isme/astra-go-api/pkg/gradebook"
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
		&models.Round{},
		&models.Category{},
		&models.LearningObject{},
		&models.Submission{},
		&models.SubmittedFile{},
		&models.DeadlineDeviation{},
		&models.SubmissionLimitDeviation{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	remoteClient, err := aplus.New(aplus.Config{
		Timeout:      cfg.ExerciseServiceTimeout,
		CABundlePath: cfg.ExerciseServiceCACert,
		CADirPath:    cfg.ExerciseServiceCADir,
		HostRemap:    cfg.ExerciseServiceRemap,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create exercise service client: %v", err)
	}

	var gradebookWriter service.GradebookWriter
	if cfg.GradebookURL != "" {
		writer, err := gradebook.New(gradebook.Config{
			BaseURL: cfg.GradebookURL,
			Token:   cfg.GradebookToken,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create gradebook client: %v", err)
		}
		gradebookWriter = writer
	}

	var events service.EventPublisher
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		events = service.NewNATSEventPublisher(natsConn)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	objectRepo := repository.NewLearningObjectRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	deviationRepo := repository.NewDeviationRepository(db)

	deviationService := service.NewDeviationService(deviationRepo, submissionRepo, objectRepo, logger)
	gradingService := service.NewGradingService(submissionRepo, objectRepo, roundRepo, deviationService, gradebookWriter, events, logger)
	extractor := service.NewPageExtractor(objectRepo, roundRepo, service.PageExtractorConfig{
		BaseURL:   cfg.BaseURL,
		HostRemap: cfg.ExerciseServiceRemap,
	}, logger)
	interpreter := service.NewProtocolInterpreter(submissionRepo, gradingService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, objectRepo, roundRepo, deviationService, remoteClient, extractor, interpreter, uploader, service.SubmissionServiceConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.ExerciseServiceAPIKey,
	}, logger)
	exerciseService := service.NewExerciseService(objectRepo, remoteClient, extractor, redisClient, service.ExerciseServiceConfig{
		APIKey:   cfg.ExerciseServiceAPIKey,
		CacheTTL: cfg.PageCacheTTL,
	}, logger)

	exerciseHandler := handler.NewExerciseHandler(exerciseService, gradingService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, exerciseService, gradingService, validate, logger)
	deviationHandler := handler.NewDeviationHandler(deviationService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExerciseHandler:   exerciseHandler,
		SubmissionHandler: submissionHandler,
		DeviationHandler:  deviationHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
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
