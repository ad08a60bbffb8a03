package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"hobbydork/internal/auction"
	auction_api "hobbydork/internal/auction/api"
	auction_db "hobbydork/internal/auction/db"
	auction_redis "hobbydork/internal/auction/redis"
	"hobbydork/internal/auth"
	"hobbydork/internal/config"
	"hobbydork/internal/database/migrations"
	"hobbydork/internal/kafka"
	"hobbydork/internal/listing"
	listing_db "hobbydork/internal/listing/db"
	"hobbydork/internal/logger"
	"hobbydork/internal/notify"
	"hobbydork/internal/order"
	order_api "hobbydork/internal/order/api"
	order_db "hobbydork/internal/order/db"
	"hobbydork/internal/order/qr"
	"hobbydork/internal/payment/handler"
	"hobbydork/internal/payment/services"
	"hobbydork/internal/payment/storage"
	"hobbydork/internal/seller"
	seller_api "hobbydork/internal/seller/api"
	seller_db "hobbydork/internal/seller/db"
	"hobbydork/internal/spotlight"
)

// subscribeAuctionDeadlines closes auctions when their Redis deadline key
// expires. Keyspace notifications must be enabled ("Ex"); verifyConnections
// takes care of that.
func subscribeAuctionDeadlines(rdb *redis.Client, auctionService *auction.AuctionService, log *logger.Logger) {
	ctx := context.Background()

	val, err := rdb.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to get keyspace config: %v", err))
	} else {
		log.Info("REDIS", fmt.Sprintf("Current keyspace notifications setting: %v", val))
		if len(val) < 2 || !strings.Contains(val[1].(string), "x") || !strings.Contains(val[1].(string), "E") {
			log.Warn("REDIS", "Keyspace notifications not properly configured for expiry events!")
		}
	}

	pubsub := rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	log.Info("REDIS", fmt.Sprintf("Subscribed to Redis keyevent expired notifications (DB %d)", rdb.Options().DB))

	go func() {
		for msg := range pubsub.Channel() {
			auctionID := auction_redis.AuctionIDFromExpiredKey(msg.Payload)
			if auctionID == "" {
				continue
			}
			log.LogAuction("DEADLINE", auctionID, "deadline expired, closing")
			if err := auctionService.CloseAuction(auctionID); err != nil {
				log.Error("AUCTION", fmt.Sprintf("Failed to close auction %s: %v", auctionID, err))
			}
		}
	}()
}

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *sql.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	_, err = redisClient.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result()
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, sqldb, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Marketplace Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, sqldb, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		log.Info("DATABASE", "Schema migrations applied")
	}

	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer kafkaProducer.Close()
	log.Info("KAFKA", "Kafka producer initialized successfully")

	requiredTopics := []string{
		cfg.Kafka.Topics.Notifications,
		cfg.Kafka.Topics.OrderStatus,
		cfg.Kafka.Topics.AuctionStatus,
		cfg.Kafka.Topics.SpotlightActivated,
	}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	notifier := notify.NewNotifier(kafkaProducer, cfg.Kafka.Topics.Notifications, log)

	stripeService, err := services.NewStripeService(log)
	if err != nil {
		log.Fatal("STRIPE", fmt.Sprintf("Failed to initialize Stripe: %v", err))
	}

	eventStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize webhook event store: %v", err))
	}

	sellerDB := &seller_db.DB{Bun: bunDB}
	orderDB := &order_db.DB{Bun: bunDB}
	listingDB := &listing_db.DB{Bun: bunDB}
	auctionDB := &auction_db.DB{Bun: bunDB, BidDeleteBatchSize: cfg.Auction.BidDeleteBatchSize}
	deadlines := auction_redis.NewRedis(redisClient)

	orderService := order.NewOrderService(orderDB, notifier, log)
	listingService := listing.NewListingService(listingDB, orderDB, log)
	auctionService := auction.NewAuctionService(auctionDB, sellerDB, stripeService, deadlines, notifier, log, cfg.Auction)
	sellerService := seller.NewSellerService(sellerDB, stripeService, log)
	spotlightService := spotlight.NewService(bunDB, notifier, log, cfg.Auction.SpotlightWindow)

	qrSecret := os.Getenv("RECEIPT_QR_SECRET")
	if qrSecret == "" {
		qrSecret = "hobbydork-dev-receipts"
		log.Warn("CONFIG", "RECEIPT_QR_SECRET not set, using development default")
	}

	orderHandler := &order_api.Handler{
		OrderService: orderService,
		QR:           qr.NewQRGenerator(qrSecret),
	}
	auctionHandler := &auction_api.Handler{AuctionService: auctionService}
	sellerHandler := &seller_api.Handler{SellerService: sellerService}
	checkoutHandler := &handler.CheckoutHandler{
		Listings: listingService,
		Auctions: auctionService,
		Stripe:   stripeService,
		Log:      log,
	}
	webhookHandler := handler.NewWebhookHandler(
		cfg.Stripe.WebhookSecret,
		eventStore,
		redisClient,
		orderService,
		auctionService,
		spotlightService,
		listingService,
		log,
	)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Post("/webhook/stripe", webhookHandler.HandleStripeWebhook)
	log.Info("ROUTER", "Stripe webhook endpoint registered at /webhook/stripe")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Get("/purchases", orderHandler.ListPurchases)
				r.Get("/sales", orderHandler.ListSales)
				r.Get("/{orderId}", orderHandler.GetOrder)
				r.Patch("/{orderId}", orderHandler.UpdateOrder)
				r.Get("/{orderId}/receipt-qr", orderHandler.ReceiptQR)
			})
			log.Info("ROUTER", "Order routes registered under /api/orders")

			r.Route("/auctions", func(r chi.Router) {
				r.Post("/", auctionHandler.CreateAuction)
				r.Get("/mine", auctionHandler.ListMine)
				r.Get("/{auctionId}", auctionHandler.GetAuction)
				r.Post("/{auctionId}/bids", auctionHandler.SubmitBid)
				r.Get("/{auctionId}/bids/{bidId}", auctionHandler.GetBid)
				r.Put("/{auctionId}/image", auctionHandler.SetImage)
			})
			log.Info("ROUTER", "Auction routes registered under /api/auctions")

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/session", checkoutHandler.CreateOrderSession)
				r.Post("/auction-fee", checkoutHandler.CreateAuctionFeeSession)
			})
			log.Info("ROUTER", "Checkout routes registered under /api/checkout")

			r.Route("/seller", func(r chi.Router) {
				r.Post("/apply", sellerHandler.Apply)
				r.Post("/onboarding", sellerHandler.StartOnboarding)
				r.Post("/finalize", sellerHandler.FinalizeSeller)
				r.Get("/account/{accountId}", sellerHandler.GetAccountStatus)
				r.Get("/payouts/{accountId}", sellerHandler.GetPayouts)
			})
			log.Info("ROUTER", "Seller routes registered under /api/seller")

			r.Route("/admin", func(r chi.Router) {
				r.Post("/auctions/{auctionId}/rerun", auctionHandler.RerunAuction)
				r.Get("/orders/{orderId}/audit", orderHandler.AuditTrail)
				r.Get("/orders/by-intent/{intentId}", orderHandler.FindByIntent)
				r.Post("/seller-applications/{applicationId}", sellerHandler.DecideApplication)
				r.Post("/users/{userId}/tier", sellerHandler.SetTier)
			})
			log.Info("ROUTER", "Admin routes registered under /api/admin")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Deadlines armed before a restart are gone from Redis; settle anything
	// that came due while the service was down.
	if closed, err := auctionService.CloseExpiredAuctions(); err != nil {
		log.Error("AUCTION", fmt.Sprintf("Startup deadline sweep failed: %v", err))
	} else if closed > 0 {
		log.Info("AUCTION", fmt.Sprintf("Startup deadline sweep closed %d auction(s)", closed))
	}

	log.Info("REDIS", "Starting auction deadline subscription")
	subscribeAuctionDeadlines(redisClient, auctionService, log)

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Marketplace Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Marketplace Service shutdown complete")
	}
}
