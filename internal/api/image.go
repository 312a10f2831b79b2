package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutrilog/backend/internal/middleware"
	"github.com/nutrilog/backend/internal/service"
)

// Meal photos stay small; anything larger is rejected before upload.
const maxPhotoSize = 10 << 20 // 10 MiB

// ImageHandler handles meal photo uploads
type ImageHandler struct {
	imageService service.ImageStore
	rateLimiter  *middleware.RateLimiter
}

// NewImageHandler creates a new image handler
func NewImageHandler(imageService service.ImageStore, rateLimiter *middleware.RateLimiter) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		rateLimiter:  rateLimiter,
	}
}

// RegisterRoutes registers the image upload routes
func (h *ImageHandler) RegisterRoutes(router *gin.RouterGroup) {
	imageRoutes := router.Group("/images")

	// Apply rate limiting if available
	if h.rateLimiter != nil {
		imageRoutes.Use(h.rateLimiter.RateLimitMiddleware())
	}

	{
		imageRoutes.POST("", h.UploadMealPhoto)
	}
}

// UploadMealPhotoResponse is the response for a successful photo upload.
type UploadMealPhotoResponse struct {
	ImageURL string `json:"image_url"`
	Status   string `json:"status"`
}

// UploadMealPhoto accepts a multipart photo, stores it, and returns the
// public URL the client attaches to its capture submission.
func (h *ImageHandler) UploadMealPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "a 'photo' file field is required",
		})
		return
	}

	if fileHeader.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "Photo too large",
			"message": "meal photos must be 10MB or smaller",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Upload failed",
			"message": err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Upload failed",
			"message": err.Error(),
		})
		return
	}

	imageURL, err := h.imageService.UploadMealPhoto(c.Request.Context(), data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Upload failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, UploadMealPhotoResponse{
		ImageURL: imageURL,
		Status:   "success",
	})
}
