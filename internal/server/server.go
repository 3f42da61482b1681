package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stockroom/internal/config"
	"stockroom/internal/database"
	"stockroom/internal/metrics"
	custommiddleware "stockroom/internal/middleware"
	"stockroom/internal/query"
	"stockroom/internal/ratelimit"
	"stockroom/internal/repository"
	"stockroom/internal/service"
	"stockroom/internal/transport"
	"stockroom/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scopeAdjustStock = "adjust_stock"
	scopeWrite       = "api_write"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	rdb := connectRedis(cfg, logger)

	router, err := NewRouter(cfg, logger, db, rdb, prometheus.NewRegistry())
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
	}, nil
}

// NewRouter builds the full HTTP surface. rdb may be nil, in which case
// rate limits are kept in process.
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Service, rdb *redis.Client, reg *prometheus.Registry) (http.Handler, error) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(m.Middleware)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(middleware.Compress(5))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", m.Handler())

	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	changeRepo := repository.NewChangeRepository(sqlDB)
	profileRepo := repository.NewProfileRepository(sqlDB)

	adjustLimiter := newLimiter(cfg.RateLimit, rdb, ratelimit.Config{
		Requests:  cfg.RateLimit.AdjustStockRequests,
		Window:    cfg.RateLimit.AdjustStockWindow,
		KeyPrefix: "ratelimit:" + scopeAdjustStock,
	}, logger)
	writeLimiter := newLimiter(cfg.RateLimit, rdb, ratelimit.Config{
		Requests:  cfg.RateLimit.WriteRequests,
		Window:    cfg.RateLimit.WriteWindow,
		KeyPrefix: "ratelimit:" + scopeWrite,
	}, logger)

	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT)
	productService := service.NewProductService(service.ProductDeps{
		UnitOfWork: repository.NewUnitOfWork(sqlDB),
		Products:   productRepo,
		Changes:    changeRepo,
		Limiter:    adjustLimiter,
		Logger:     logger.Named("products"),
		Metrics:    m,
	})
	profileService := service.NewProfileService(profileRepo, cfg.Profile.DefaultCountryCode)

	limits := query.Limits{DefaultPageSize: cfg.Catalog.DefaultPageSize, MaxPageSize: cfg.Catalog.MaxPageSize}

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)
	writeLimit := custommiddleware.RateLimitMiddleware(writeLimiter, scopeWrite, m, logger)

	profileHandler := transport.NewProfileHandler(profileService, logger)
	transport.NewUserHandler(userService, logger).RegisterRoutes(router, authMiddleware, profileHandler.Routes)
	transport.NewProductHandler(productService, limits, logger).RegisterRoutes(router, optionalAuth, authMiddleware, writeLimit)
	transport.NewAdminHandler(productService, userService, logger).RegisterRoutes(router, authMiddleware)

	pages, err := web.New(productService, limits, logger)
	if err != nil {
		return nil, err
	}
	pages.RegisterRoutes(router, optionalAuth)

	return router, nil
}

func newLimiter(cfg config.RateLimitConfig, rdb *redis.Client, rl ratelimit.Config, logger *zap.Logger) ratelimit.Limiter {
	if rdb != nil && cfg.Backend == "redis" {
		return ratelimit.NewRedisLimiter(rdb, rl).WithLogger(logger)
	}
	if cfg.Backend == "redis" {
		logger.Warn("Redis unavailable, using in-process rate limiter", zap.String("scope", rl.KeyPrefix))
	}
	return ratelimit.NewMemoryLimiter(rl)
}

// connectRedis returns nil when Redis is disabled or unreachable
func connectRedis(cfg *config.Config, logger *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis ping failed", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		rdb.Close()
		return nil
	}
	return rdb
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
