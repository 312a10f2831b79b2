package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nutrilog/backend/config"
	"github.com/nutrilog/backend/internal/middleware"
	"github.com/nutrilog/backend/internal/service"
)

// SetupAPI wires the services and registers all v1 routes. Redis and S3
// are optional so the API can come up degraded in local development; the
// analysis endpoint is required.
func SetupAPI(router *gin.Engine, db *gorm.DB, redisClient *redis.Client, s3cfg *config.S3Config) error {
	analysisService, err := service.NewAnalysisService()
	if err != nil {
		return err
	}

	mealService := service.NewMealService(db)
	notifier := service.NewNotifier()

	var draftStore service.DraftStore
	var analysisLimiter, imageLimiter *middleware.RateLimiter
	if redisClient != nil {
		draftStore = service.NewDraftService(redisClient)
		analysisLimiter = middleware.NewAnalysisRateLimiter(redisClient)
		imageLimiter = middleware.NewImageUploadRateLimiter(redisClient)
	} else {
		log.Printf("[API] redis unavailable, capture drafts and rate limits disabled")
	}

	captureService := service.NewCaptureService(mealService, analysisService, draftStore, notifier)

	v1 := router.Group("/api/v1")
	{
		mealHandler := NewMealHandler(mealService, captureService, notifier)
		captureHandler := NewCaptureHandler(captureService, analysisService, draftStore)
		eventsHandler := NewEventsHandler(notifier)

		mealHandler.RegisterRoutes(v1)
		eventsHandler.RegisterRoutes(v1)

		if analysisLimiter != nil {
			analyze := v1.Group("")
			analyze.Use(analysisLimiter.RateLimitMiddleware())
			captureHandler.RegisterRoutes(analyze)
		} else {
			captureHandler.RegisterRoutes(v1)
		}

		if s3cfg != nil {
			imageHandler := NewImageHandler(service.NewImageService(s3cfg), imageLimiter)
			imageHandler.RegisterRoutes(v1)
		} else {
			log.Printf("[API] S3 unavailable, photo uploads disabled")
		}
	}

	return nil
}
