package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"classifieds/internal/cache"
	"classifieds/internal/config"
	"classifieds/internal/database"
	custommiddleware "classifieds/internal/middleware"
	"classifieds/internal/repository"
	"classifieds/internal/service"
	"classifieds/internal/storage"
	"classifieds/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cachePrefix = "classifieds"

// Dependencies are the external resources the server is built on.
// Redis may be nil, which disables caching and rate limiting.
type Dependencies struct {
	DB     *database.Service
	Redis  *redis.Client
	Images storage.ImageStore
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	server.Handler = server.routes()

	return server
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger))
	router.Use(custommiddleware.CORSMiddleware(s.config.CORS.AllowedOrigins, s.config.IsDevelopment()))

	router.Get("/health", s.health)

	db := s.deps.DB.DB()
	listingRepo := repository.NewListingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	categoryCache := cache.NewNoop()
	var favoriteLimit func(http.Handler) http.Handler
	if s.deps.Redis != nil {
		categoryCache = cache.NewRedisCache(s.deps.Redis, cachePrefix, s.config.Cache.TTL)
		favoriteLimit = custommiddleware.RateLimitMiddleware(s.deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: s.config.RateLimit.Requests,
			Window:            s.config.RateLimit.Window,
			KeyPrefix:         cachePrefix + ":ratelimit:favorites",
		}, s.logger)
	}

	listingService := service.NewListingService(listingRepo, favoriteRepo, s.deps.Images, categoryCache, s.logger)
	categoryService := service.NewCategoryService(categoryRepo, categoryCache, s.logger)
	favoriteService := service.NewFavoriteService(favoriteRepo, listingRepo, s.logger)

	optionalAuth := custommiddleware.OptionalAuth(s.config.JWT.Secret, s.logger)
	requireAuth := custommiddleware.AuthMiddleware(s.config.JWT.Secret, s.logger)

	transport.NewListingHandler(listingService, s.logger).RegisterRoutes(router, optionalAuth, requireAuth)
	transport.NewCategoryHandler(categoryService, listingService, s.logger).RegisterRoutes(router, optionalAuth, requireAuth)
	transport.NewFavoriteHandler(favoriteService, s.logger).RegisterRoutes(router, optionalAuth, requireAuth, favoriteLimit)

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok"}

	dbHealth := s.deps.DB.Health(r.Context())
	body["database"] = dbHealth
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	if s.deps.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = "down"
			body["status"] = "degraded"
		} else {
			body["redis"] = "up"
		}
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

// Close releases the database pool and the Redis client
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
		}
	}

	s.logger.Sync()
	return nil
}
