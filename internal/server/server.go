package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nutrilog/backend/config"
	"github.com/nutrilog/backend/internal/database"
	"github.com/nutrilog/backend/internal/router"
)

// Server represents the HTTP server
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	http   *http.Server
	db     *gorm.DB
	redis  *redis.Client
}

// New connects the backing stores and builds a ready-to-start server.
// Redis and S3 failures degrade the server instead of aborting startup;
// the database is required.
func New(cfg *config.Config) (*Server, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(db, "migrations"); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("[Server] redis unavailable, continuing without it: %v", err)
		redisClient = nil
	}

	s3cfg, err := config.NewS3Config(context.Background())
	if err != nil {
		log.Printf("[Server] S3 unavailable, photo uploads disabled: %v", err)
		s3cfg = nil
	}

	return NewWithDeps(cfg, db, redisClient, s3cfg)
}

// NewWithDeps builds a server on already-connected stores.
func NewWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, s3cfg *config.S3Config) (*Server, error) {
	engine, err := router.SetupRouter(db, redisClient, s3cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		router: engine,
		db:     db,
		redis:  redisClient,
	}, nil
}

// Router exposes the underlying engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	addr := s.cfg.ServerHost + ":" + s.cfg.ServerPort
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[Server] listening on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes the store
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("[Server] failed to close redis client: %v", err)
		}
	}

	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}
