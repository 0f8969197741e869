package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"orderdesk-backend/config"
	"orderdesk-backend/internal/delivery/http/middleware"
	v1 "orderdesk-backend/internal/delivery/http/v1"
	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/infrastructure/archive"
	"orderdesk-backend/internal/infrastructure/cache"
	"orderdesk-backend/internal/infrastructure/notify"
	"orderdesk-backend/internal/infrastructure/pathao"
	"orderdesk-backend/internal/repository/memory"
	"orderdesk-backend/internal/repository/postgres"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type repositories struct {
	orders    domain.OrderRepository
	riders    domain.RiderRepository
	config    domain.ConfigRepository
	stats     domain.StatsRepository
	txManager domain.TransactionManager
	locker    domain.OrderLocker
	pool      *pgxpool.Pool // nil with the memory driver
}

func openStorage(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.StorageDriver == config.StorageMemory {
		orders := memory.NewOrderRepository()
		return &repositories{
			orders:    orders,
			riders:    memory.NewRiderRepository(),
			config:    memory.NewConfigRepository(),
			stats:     orders,
			txManager: memory.NewTransactionManager(),
			locker:    memory.NewOrderLocker(),
		}, nil
	}

	pool, err := postgres.NewPgxPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &repositories{
		orders:    postgres.NewOrderRepository(pool),
		riders:    postgres.NewRiderRepository(pool),
		config:    postgres.NewConfigRepository(pool),
		stats:     postgres.NewStatsRepository(pool),
		txManager: postgres.NewTransactionManager(pool),
		locker:    postgres.NewOrderLocker(pool),
		pool:      pool,
	}, nil
}

func main() {
	cfg := config.LoadConfig()
	utils.SetSecret(cfg.JWTSecret)
	utils.SetIssuer(cfg.JWTIssuer)

	// Initialize Logger
	logger.Init("orderdesk-api", cfg.Env, cfg.LogLevel)
	log := logger.Get()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	repos, err := openStorage(startupCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("Failed to open storage")
	}
	log.Info().Str("driver", cfg.StorageDriver).Msg("Storage ready")

	// Default expiration 30m, cleanup every 60m
	memCache := cache.NewMemoryCache(30*time.Minute, 60*time.Minute)

	// --- Courier ---
	courier, err := pathao.NewClient(cfg.PathaoConfig())
	if err != nil {
		log.Fatal().Err(err).Str("mode", cfg.CourierMode).Msg("Failed to initialize courier client")
	}
	log.Info().Str("mode", cfg.CourierMode).Msg("Courier client ready")

	// --- Status notifications ---
	var notifier domain.Notifier = notify.NewLogNotifier()
	var kafka *notify.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaOrderEventsTopic)
		if err != nil {
			log.Fatal().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("Failed to connect to Kafka")
		}
		notifier = kafka
	}

	// --- Consignment receipts (R2) ---
	var receipts domain.ConsignmentArchive
	if cfg.ArchiveEnabled() {
		r2, err := archive.NewR2Archive(startupCtx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2ReceiptBucket, cfg.R2UploadTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize R2 receipt archive")
		}
		if r2 != nil {
			receipts = r2
		}
	}

	settingsSnapshot, err := cfg.DispatchSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dispatch settings")
	}
	settings := usecase.NewSettingsProvider(settingsSnapshot)

	// --- Modules Initialization ---
	writer := usecase.NewOrderWriter(repos.orders, repos.txManager, repos.locker, notifier)
	courierUC := usecase.NewCourierUsecase(courier, cache.Namespace(memCache, "coverage"), cfg.CacheCoverageTTL)
	shippingUC := usecase.NewShippingUsecase(repos.config, courier, settings)
	reversalUC := usecase.NewReversalUsecase(writer, courier, receipts)
	dispatchUC := usecase.NewDispatchUsecase(writer, repos.orders, repos.riders, courier, courierUC, reversalUC, receipts, settings)
	orderUC := usecase.NewOrderUsecase(writer, repos.orders, shippingUC, courierUC, reversalUC, settings)
	paymentUC := usecase.NewPaymentUsecase(writer, reversalUC)
	riderUC := usecase.NewRiderUsecase(repos.riders, repos.orders)
	statsUC := usecase.NewStatsUsecase(repos.stats, memCache)

	orderHandler := v1.NewOrderHandler(orderUC, cfg.MaxOrderQuantity)
	adminOrderHandler := v1.NewAdminOrderHandler(orderUC, dispatchUC, paymentUC)
	courierHandler := v1.NewCourierHandler(courierUC, shippingUC)
	riderHandler := v1.NewRiderHandler(riderUC)
	configHandler := v1.NewConfigHandler(memCache, repos.config, settings, cfg.CacheEnumsTTL)
	adminConfigHandler := v1.NewAdminConfigHandler(memCache, repos.config, settings)
	paymentHandler := v1.NewPaymentCallbackHandler(paymentUC)
	adminStatsHandler := v1.NewAdminStatsHandler(statsUC)

	// Per-IP limit for the whole API, plus a per-operator limit on routes that
	// call the courier.
	rateLimiter := middleware.NewRateLimiter(context.Background(), middleware.RateLimit{
		Name:  "api",
		Limit: rate.Limit(cfg.RateLimitPerSecond),
		Burst: cfg.RateLimitBurst,
		Key:   middleware.ByClientIP,
	})
	dispatchLimiter := middleware.NewRateLimiter(context.Background(), middleware.RateLimit{
		Name:  "dispatch",
		Limit: rate.Limit(cfg.DispatchLimitPerMinute / 60),
		Burst: cfg.DispatchLimitBurst,
		Key:   middleware.ByOperator,
	})

	// Set up Router
	mux := http.NewServeMux()

	// Config (Public)
	mux.HandleFunc("GET /api/v1/config/enums", configHandler.GetEnums)

	// Checkout & Orders (Customer)
	mux.Handle("POST /api/v1/checkout", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.Checkout)))
	mux.Handle("GET /api/v1/orders", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.GetMyOrders)))
	mux.Handle("GET /api/v1/orders/{id}", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.GetMyOrder)))
	mux.HandleFunc("POST /api/v1/shipping/quote", courierHandler.Quote)

	// Payment gateway callback (shared token, no user session)
	mux.Handle("POST /api/v1/payments/callback", middleware.CallbackToken(cfg.PaymentCallbackToken)(http.HandlerFunc(paymentHandler.Callback)))

	// Operators (admin or operator role)
	adminMiddleware := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(h))
	}
	courierMiddleware := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(dispatchLimiter.Wrap(h)))
	}
	// Settings writes are admin only
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminOnlyMiddleware(h))
	}

	// Admin Orders
	mux.Handle("GET /api/v1/admin/orders", adminMiddleware(adminOrderHandler.ListOrders))
	mux.Handle("GET /api/v1/admin/orders/{id}", adminMiddleware(adminOrderHandler.GetOrder))
	mux.Handle("GET /api/v1/admin/orders/{id}/history", adminMiddleware(adminOrderHandler.GetHistory))
	mux.Handle("PATCH /api/v1/admin/orders/{id}/status", adminMiddleware(adminOrderHandler.UpdateStatus))
	mux.Handle("POST /api/v1/admin/orders/{id}/cancel", adminMiddleware(adminOrderHandler.CancelOrder))
	mux.Handle("PATCH /api/v1/admin/orders/{id}/shipping-cost", adminMiddleware(adminOrderHandler.UpdateShippingCost))
	mux.Handle("POST /api/v1/admin/orders/{id}/shipping-cost/requote", courierMiddleware(adminOrderHandler.RequoteShipping))

	// Admin Dispatch
	mux.Handle("POST /api/v1/admin/orders/{id}/assign", courierMiddleware(adminOrderHandler.Assign))
	mux.Handle("POST /api/v1/admin/orders/{id}/assign-rider", adminMiddleware(adminOrderHandler.AssignRider))
	mux.Handle("POST /api/v1/admin/orders/{id}/dispatch", courierMiddleware(adminOrderHandler.DispatchExternal))
	mux.Handle("DELETE /api/v1/admin/orders/{id}/assignment", courierMiddleware(adminOrderHandler.CancelAssignment))
	mux.Handle("POST /api/v1/admin/orders/{id}/courier-sync", courierMiddleware(adminOrderHandler.SyncCourierStatus))

	// Admin Payments
	mux.Handle("PATCH /api/v1/admin/orders/{id}/payment-status", adminMiddleware(adminOrderHandler.UpdatePaymentStatus))
	mux.Handle("POST /api/v1/admin/orders/{id}/refund", courierMiddleware(adminOrderHandler.RefundOrder))
	mux.Handle("POST /api/v1/admin/orders/{id}/switch-to-cod", adminMiddleware(adminOrderHandler.SwitchToCOD))
	mux.Handle("GET /api/v1/admin/orders/{id}/cash-to-collect", adminMiddleware(adminOrderHandler.CashToCollect))

	// Admin Riders
	mux.Handle("GET /api/v1/admin/riders", adminMiddleware(riderHandler.ListRiders))
	mux.Handle("GET /api/v1/admin/riders/{id}", adminMiddleware(riderHandler.GetRider))
	mux.Handle("POST /api/v1/admin/riders", adminOnly(riderHandler.CreateRider))

	// Admin Courier lookups
	mux.Handle("GET /api/v1/admin/courier/cities", adminMiddleware(courierHandler.ListCities))
	mux.Handle("GET /api/v1/admin/courier/cities/{cityId}/zones", adminMiddleware(courierHandler.ListZones))
	mux.Handle("GET /api/v1/admin/courier/zones/{zoneId}/areas", adminMiddleware(courierHandler.ListAreas))
	mux.Handle("POST /api/v1/admin/courier/match-location", courierMiddleware(courierHandler.MatchLocation))
	mux.Handle("POST /api/v1/admin/courier/refresh", courierMiddleware(courierHandler.Refresh))

	// Admin Config
	mux.Handle("GET /api/v1/admin/config/enums", adminMiddleware(configHandler.GetEnums))
	mux.Handle("GET /api/v1/admin/config/shipping-rates", adminMiddleware(adminConfigHandler.GetAllShippingRates))
	mux.Handle("POST /api/v1/admin/config/shipping-rates", adminOnly(adminConfigHandler.CreateShippingRate))
	mux.Handle("PUT /api/v1/admin/config/shipping-rates/{id}", adminOnly(adminConfigHandler.UpdateShippingRate))
	mux.Handle("DELETE /api/v1/admin/config/shipping-rates/{id}", adminOnly(adminConfigHandler.DeleteShippingRate))
	mux.Handle("GET /api/v1/admin/config/settings", adminMiddleware(adminConfigHandler.GetSettings))
	mux.Handle("PATCH /api/v1/admin/config/settings", adminOnly(adminConfigHandler.UpdateSettings))

	// Admin Stats
	mux.Handle("GET /api/v1/admin/stats/dispatch", adminMiddleware(adminStatsHandler.GetDispatchSummary))

	// Health Check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "storage": cfg.StorageDriver}
		if repos.pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := repos.pool.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["db"] = "unreachable"
				utils.WriteJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["db"] = "connected"
		}
		utils.WriteJSON(w, http.StatusOK, status)
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler) // Support root health check for Load Balancers

	addr := fmt.Sprintf(":%s", cfg.Port)

	// Apply CORS, Request Logger, Rate Limit, and Gzip
	handler := middleware.NewCORSMiddleware(cfg.AllowedOrigin)(mux)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = gziphandler.GzipHandler(handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.ServiceStart("orderdesk-api", version, cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	rateLimiter.Shutdown()
	dispatchLimiter.Shutdown()

	// In-flight dispatches may still be waiting on the courier.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CourierTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if kafka != nil {
		if err := kafka.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}
	if repos.pool != nil {
		repos.pool.Close()
	}

	logger.ServiceStop("orderdesk-api")
}
