package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/aitrends/backend/internal/config"
	"github.com/aitrends/backend/internal/database"
	"github.com/aitrends/backend/internal/httpapi"
	"github.com/aitrends/backend/internal/kie"
	"github.com/aitrends/backend/internal/repository"
	"github.com/aitrends/backend/internal/service"
	"github.com/aitrends/backend/internal/storage"
	"github.com/aitrends/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	kieClient := kie.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	userService := service.NewUserService(userRepo, adminRepo)
	templateService := service.NewTemplateService(templateRepo)
	generationService := service.NewGenerationService(cfg, logr, userRepo, generationRepo, templateRepo, kieClient)
	paymentService := service.NewPaymentService(cfg, logr, paymentRepo, userRepo)

	var uploader *storage.Uploader
	if cfg.S3Configured() {
		uploader, err = storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
	} else {
		logr.Warn("object storage not configured, preview uploads disabled")
	}

	jobs := cron.New()
	if _, err := jobs.AddFunc("@every 30s", func() { generationService.Poll(ctx) }); err != nil {
		log.Fatalf("schedule poll job: %v", err)
	}
	if _, err := jobs.AddFunc("@every 5m", func() { generationService.FailStale(ctx) }); err != nil {
		log.Fatalf("schedule stale job: %v", err)
	}
	if _, err := jobs.AddFunc("@every 1m", func() { paymentService.ReconcilePending(ctx) }); err != nil {
		log.Fatalf("schedule reconcile job: %v", err)
	}
	jobs.Start()
	defer jobs.Stop()

	server := httpapi.NewServer(cfg.ListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, userService, generationService, paymentService, templateService, uploader)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}
