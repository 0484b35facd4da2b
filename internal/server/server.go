package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/storage"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the collaborators the server is assembled from
type Deps struct {
	DB     database.Service
	Redis  *redis.Client // nil selects the in-process rate limiter
	Images storage.Store
	Mailer service.Mailer
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsProduction()))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Get("/health", healthHandler(deps.DB))

	if cfg.Storage.Driver == "local" {
		prefix := strings.TrimRight(cfg.Storage.URLPrefix, "/")
		router.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Storage.UploadDir))))
	}

	db := deps.DB.DB()
	timeout := cfg.Database.QueryTimeout

	// Repositories
	txManager := repository.NewTxManager(db, timeout)
	userRepo := repository.NewUserRepository(db, timeout)
	productRepo := repository.NewProductRepository(db, timeout)
	cartRepo := repository.NewCartRepository(db, timeout)
	orderRepo := repository.NewOrderRepository(db, timeout)
	orderItemRepo := repository.NewOrderItemRepository(db, timeout)
	reviewRepo := repository.NewReviewRepository(db, timeout)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.Expiry)*time.Minute)
	catalogService := service.NewCatalogService(productRepo, deps.Images, logger)
	cartService := service.NewCartService(txManager, cartRepo, logger)
	orderService := service.NewOrderService(txManager, userRepo, orderRepo, orderItemRepo, deps.Mailer, logger)
	reviewService := service.NewReviewService(reviewRepo, productRepo)

	// Handlers
	authMiddleware := custommiddleware.AuthMiddleware(authService, logger)
	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, authMiddleware, rateLimiter(cfg, deps.Redis, logger))
	transport.NewProductHandler(catalogService, cfg.Storage.MaxBytes, logger).RegisterRoutes(router)
	transport.NewCartHandler(cartService, logger).RegisterRoutes(router)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router)
	transport.NewOrderItemHandler(orderService, logger).RegisterRoutes(router)
	transport.NewReviewHandler(reviewService, logger).RegisterRoutes(router)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

func rateLimiter(cfg *config.Config, client *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	rl := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rate_limit:auth",
	}
	if client != nil {
		return custommiddleware.RateLimitMiddleware(client, rl, logger)
	}
	logger.Info("Redis not configured, using in-process rate limiter")
	return custommiddleware.NewLocalRateLimiter(rl, logger).Middleware
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	}
}

// Close releases the connections the server was built with
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
			return err
		}
	}
	return nil
}
