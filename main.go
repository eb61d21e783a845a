package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mesa-order-client/internal/auth"
	"mesa-order-client/internal/config"
	"mesa-order-client/internal/devserver"
	"mesa-order-client/internal/logger"
	"mesa-order-client/internal/queue"
	"mesa-order-client/pkg/receipt"
	"mesa-order-client/pkg/storage"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	store := devserver.NewStore()
	if cfg.DemoSeed {
		devserver.SeedDemo(store)
		log.Info("demo restaurant seeded", zap.String("restaurantId", devserver.DemoRestaurantID))
	}

	var uploader receipt.Uploader
	if cfg.ObjectStore().Enabled() {
		objectStore, err := storage.NewObjectStore(ctx, cfg.ObjectStore())
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("object store init failed", zap.Error(err))
			}
			log.Warn("object store init failed; receipts will not be published", zap.Error(err))
		} else {
			uploader = objectStore
			log.Info("receipt publishing enabled", zap.String("bucket", cfg.ObjectStoreBucket))
		}
	} else {
		log.Info("receipt publishing disabled (object store not configured)")
	}

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			if err := queue.EnsureTopology(qc, cfg.EventsExchange); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq topology failed", zap.Error(err))
				}
				log.Warn("rabbitmq topology failed; continuing without events", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		queueClient = qc
		if qc != nil {
			defer qc.Close()
			log.Info("table events enabled", zap.String("exchange", cfg.EventsExchange))
		}
	} else {
		log.Info("table events disabled (RABBITMQ_URL is empty)")
	}

	staffSecret := cfg.StaffJWTSecret
	if staffSecret == "" {
		if cfg.Env == "production" {
			log.Fatal("STAFF_JWT_SECRET is required in production")
		}
		staffSecret = uuid.NewString()
		token, err := auth.IssueAccessToken(staffSecret, auth.Claims{StaffID: "dev", Role: auth.RoleManager}, 12*time.Hour)
		if err != nil {
			log.Fatal("dev staff token failed", zap.Error(err))
		}
		log.Info("STAFF_JWT_SECRET is empty; generated a throwaway secret", zap.String("staffToken", token))
	}

	opts := devserver.Options{
		Env:                cfg.Env,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		TicketPollInterval: cfg.WSTicketPollInterval,
		Uploader:           uploader,
		InlineReceipts:     queueClient == nil,
		StaffJWTSecret:     staffSecret,
	}
	if queueClient != nil {
		opts.Events = queue.NewEvents(queueClient, cfg.EventsExchange, log.Named("events"))
	}
	srv := devserver.New(store, log, opts)
	defer srv.Close()

	if queueClient != nil && uploader != nil {
		log.Info("receipt worker enabled", zap.String("queue", queue.ReceiptsQueue))
		go func() {
			err := queueClient.ConsumeWithRetry(ctx, queue.ReceiptsQueue, srv.HandleReceiptJob, 5, 5*time.Second, log.Named("receipts"))
			if err != nil && ctx.Err() == nil {
				log.Error("receipt consumer stopped", zap.Error(err))
			}
		}()
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("mobile api ready", zap.String("base", "/api/movil"))
		log.Info("ticket ws ready", zap.String("path", "/ws/seguimiento"))
		log.Info("development backend listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancelWorkers()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
