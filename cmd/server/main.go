package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/handler"
	"github.com/chatcoins/internal/kafka"
	"github.com/chatcoins/internal/postgres"
	"github.com/chatcoins/internal/redis"
	"github.com/chatcoins/internal/service"
	"github.com/chatcoins/internal/websocket"
	"github.com/chatcoins/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	store, err := postgres.NewStore(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := store.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis rich-list read model
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	richList, err := redis.NewRichListService(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("failed to connect to Redis, rich list falls back to PostgreSQL", "error", err)
		richList = nil
	} else {
		defer richList.Close()
		logger.Info("connected to Redis")
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize Kafka event notifier
	sinks := []service.EventSink{wsHub}
	var notifier *kafka.Notifier
	if cfg.Kafka.Enabled {
		notifier, err = kafka.NewNotifier(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka notifier, continuing without it", "error", err)
		} else {
			sinks = append(sinks, notifier)
			defer notifier.Close()
		}
	}

	// Initialize the economy service
	economy := service.NewEconomyService(store, richList, &cfg.Economy, logger, sinks...)

	// Initialize background scheduler
	scheduler := worker.NewScheduler(economy, store, richList, &cfg.Worker, &cfg.Economy, logger)
	if cfg.Worker.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka command consumer
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.CommandTopic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, economy, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(economy, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket event feed available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop scheduler
	if err := scheduler.Stop(); err != nil {
		logger.Error("failed to stop scheduler", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
