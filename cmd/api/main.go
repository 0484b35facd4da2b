package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/mail"
	"storefront/internal/server"
	"storefront/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func gracefulShutdown(apiServer *server.Server, dispatcher *mail.Dispatcher, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Requests are drained; no new mail can be queued past this point.
	if err := dispatcher.Stop(ctx); err != nil {
		logger.Error("Mail dispatcher did not drain", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Addr() == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, falling back to in-process rate limiting",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		_ = client.Close()
		return nil
	}
	return client
}

func main() {
	migrationStatus := flag.Bool("migration-status", false, "print the migration status and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	if *migrationStatus {
		if err := database.GetMigrationStatus(dbService.DB()); err != nil {
			log.Fatal("Failed to read migration status", zap.Error(err))
		}
		_ = dbService.Close()
		return
	}

	if err := database.RunMigrations(dbService.DB(), log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	images, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal("Failed to initialize image storage", zap.Error(err))
	}

	dispatcher := mail.NewDispatcher(mail.NewSender(cfg.Mail, log), mail.DispatcherConfig{
		SendTimeout: cfg.Mail.SendTimeout,
		MaxRetries:  cfg.Mail.MaxRetries,
		QueueSize:   cfg.Mail.QueueSize,
		Workers:     cfg.Mail.Workers,
	}, log)
	dispatcher.Start()

	srv := server.NewServer(cfg, log, server.Deps{
		DB:     dbService,
		Redis:  newRedisClient(ctx, cfg.Redis, log),
		Images: images,
		Mailer: dispatcher,
	})

	done := make(chan bool, 1)
	go gracefulShutdown(srv, dispatcher, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
