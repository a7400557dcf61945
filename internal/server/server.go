package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	custommiddleware "product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errNoSession = errors.New("request has no database session")

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *database.Service
	redis  *redis.Client
}

// NewServer wires the catalog API. redisClient may be nil, in which case
// write routes are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service, redisClient *redis.Client) *Server {
	server := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      server.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger))
	router.Use(custommiddleware.CORSMiddleware(s.config.CORS.AllowedOrigins, s.config.Server.IsDevelopment()))

	router.Get("/health", s.health)

	var writeLimit func(http.Handler) http.Handler
	if s.redis != nil {
		writeLimit = custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: s.config.RateLimit.Requests,
			Window:            s.config.RateLimit.Window,
			KeyPrefix:         "catalog_rate_limit",
		}, s.logger)
	}

	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.SessionMiddleware(s.db))

		transport.NewCategoryHandler(s.catalogService, s.logger).RegisterRoutes(r, writeLimit)
		transport.NewProductHandler(s.catalogService, s.logger).RegisterRoutes(r, writeLimit)
	})

	return router
}

// catalogService builds the stores over the request's session. Routes
// mounted outside SessionMiddleware get errNoSession.
func (s *Server) catalogService(r *http.Request) (service.CatalogService, error) {
	session, ok := custommiddleware.SessionFromContext(r.Context())
	if !ok {
		return nil, errNoSession
	}
	return service.NewCatalogService(
		repository.NewCategoryStore(session, s.logger),
		repository.NewProductStore(session, s.logger),
		s.logger,
	), nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	dbHealth := s.db.Health(r.Context())

	status, code := "ok", http.StatusOK
	if dbHealth["status"] != "up" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	custommiddleware.RespondWithJSON(w, code, map[string]any{
		"status":   status,
		"database": dbHealth,
	})
}

// Close releases the database pool and the Redis client
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}
	return nil
}
