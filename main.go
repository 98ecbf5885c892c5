package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/events"
	"github.com/gigconnect/gigconnect-api/logger"
	"github.com/gigconnect/gigconnect-api/notifications"
	"github.com/gigconnect/gigconnect-api/realtime"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gigconnect/gigconnect-api/utils"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	config.SetConfig(cfg)

	log := logger.New(cfg.LogLevel)
	log.WithField("env", cfg.GoEnv).Info("Starting GigConnect API server...")

	if err := config.ConnectDatabase(cfg); err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	db := config.GetDB()
	if err := config.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}
	log.Info("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repositories.NewGormStore(db)
	hub := realtime.NewHub(log)
	publishers := []events.Publisher{hub}

	if cfg.AMQPURL != "" {
		broker, err := events.DialAMQP(ctx, cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer broker.Close()
		publishers = append(publishers, broker)
	}

	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		publishers = append(publishers, notifications.NewNotifier(client, log))

		processor := notifications.NewProcessor(store, notifications.NewMailer(cfg, log), log)
		worker := notifications.NewServer(cfg.RedisAddr, log)
		if err := worker.Start(processor.ServeMux()); err != nil {
			log.WithError(err).Fatal("Failed to start notification worker")
		}
		defer worker.Shutdown()
	} else {
		log.Info("REDIS_ADDR not set, email notifications disabled")
	}

	publisher := events.NewMultiPublisher(publishers...)

	if err := initImageStorage(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Failed to initialize image storage")
	}

	services.InitUserService(store, cfg.ClientStartingBalance, log)
	services.InitJobService(store, publisher, log)
	services.InitJobLifecycleService(store, publisher, log)

	router, err := setupRouter(cfg, log, hub)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up router")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server is running on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// initImageStorage selects S3 or local disk for proof images
func initImageStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if cfg.StorageBackend == config.StorageS3 {
		s3Service, err := services.InitS3Service(ctx, cfg)
		if err != nil {
			return err
		}
		services.InitImageService(s3Service)
		log.WithField("bucket", cfg.AWSS3Bucket).Info("Storing proof images in S3")
		return nil
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return err
	}
	utils.UploadDir = cfg.UploadDir
	services.InitLocalImageService(cfg.UploadDir)
	log.WithField("dir", cfg.UploadDir).Info("Storing proof images on local disk")
	return nil
}
