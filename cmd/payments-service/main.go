package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"hobbydork/internal/config"
	"hobbydork/internal/kafka"
	"hobbydork/internal/logger"
	"hobbydork/internal/notify"
	"hobbydork/internal/payment/handler"
	"hobbydork/internal/payment/services"
	"hobbydork/internal/payment/storage"
	"hobbydork/internal/spotlight"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Payments Admin Service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	eventStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize event store: %v", err))
	}

	stripeService, err := services.NewStripeService(log)
	if err != nil {
		log.Fatal("STRIPE", fmt.Sprintf("Failed to initialize Stripe: %v", err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	notifier := notify.NewNotifier(producer, cfg.Kafka.Topics.Notifications, log)

	spotlightService := spotlight.NewService(bunDB, notifier, log, cfg.Auction.SpotlightWindow)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	listTopics := func() ([]string, error) {
		return kafka.ListTopics(cfg.Kafka.Brokers)
	}
	adminHandler := handler.NewAdminHandler(stripeService, eventStore, spotlightService, listTopics, log)
	adminHandler.RegisterRoutes(r)

	port := os.Getenv("PAYMENTS_ADMIN_PORT")
	if port == "" {
		port = ":8085"
	}
	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Payments Admin Service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Payments Admin Service shutdown complete")
	}
}
