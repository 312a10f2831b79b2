package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nutrilog/backend/config"
	"github.com/nutrilog/backend/internal/api"
	"github.com/nutrilog/backend/internal/database"
	"github.com/nutrilog/backend/internal/middleware"
)

// SetupRouter configures the application routes
func SetupRouter(db *gorm.DB, redisClient *redis.Client, s3cfg *config.S3Config) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS())

	if err := api.SetupAPI(router, db, redisClient, s3cfg); err != nil {
		return nil, err
	}

	router.GET("/health", healthHandler(db, redisClient))

	return router, nil
}

// healthHandler reports readiness of the server's backing stores. Redis is
// optional, its absence degrades the report without failing it.
func healthHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		overall := "ok"
		dbStatus := "ok"
		if err := database.HealthCheck(c.Request.Context(), db); err != nil {
			dbStatus = "unreachable"
			overall = "degraded"
			status = http.StatusServiceUnavailable
		}

		redisStatus := "disabled"
		if redisClient != nil {
			redisStatus = "ok"
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				redisStatus = "unreachable"
			}
		}

		c.JSON(status, gin.H{
			"status":   overall,
			"database": dbStatus,
			"redis":    redisStatus,
		})
	}
}
