package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutrilog/backend/internal/service"
)

// CaptureHandler serves the analyze-and-save capture flow.
type CaptureHandler struct {
	capture  *service.CaptureService
	analysis service.Analyzer
	drafts   service.DraftStore
}

func NewCaptureHandler(capture *service.CaptureService, analysis service.Analyzer, drafts service.DraftStore) *CaptureHandler {
	return &CaptureHandler{
		capture:  capture,
		analysis: analysis,
		drafts:   drafts,
	}
}

func (h *CaptureHandler) RegisterRoutes(router *gin.RouterGroup) {
	meals := router.Group("/meals")
	{
		meals.POST("/analyze", h.Analyze)
		meals.POST("/analyze/cancel", h.CancelAnalysis)
		meals.GET("/analyze/stage", h.GetStage)
	}

	drafts := router.Group("/drafts")
	{
		drafts.GET("/:id", h.GetDraft)
		drafts.DELETE("/:id", h.DeleteDraft)
	}
}

// AnalyzeRequest is the capture submission: the user's description plus an
// optional photo, and the draft id the client uses to restore unsent input.
type AnalyzeRequest struct {
	DraftID    string `json:"draft_id"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	ImageName  string `json:"image_name"`
	ImageType  string `json:"image_type"`
	ImageData  string `json:"image_data"`
	ImageURL   string `json:"image_url"`
}

// Analyze runs the full submit flow: analysis, save on success, draft
// preserve or clear depending on the outcome. Closing the connection
// cancels the in-flight analysis through the request context.
func (h *CaptureHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := service.CaptureDraft{
		ID:           req.DraftID,
		Text:         req.Text,
		Transcript:   req.Transcript,
		ImageName:    req.ImageName,
		ImageType:    req.ImageType,
		ImageDataURI: req.ImageData,
		ImageURL:     req.ImageURL,
	}

	meal, result := h.capture.Submit(c.Request.Context(), draft)

	if result.Cancelled {
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
		return
	}

	if result.Error != "" {
		c.JSON(statusForErrorCode(result.ErrorCode), gin.H{
			"error":      result.Error,
			"error_code": result.ErrorCode,
			"retryable":  result.Retryable,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"meal":      meal,
		"nutrition": result.Data,
	})
}

// CancelAnalysis aborts whatever analysis is in flight. Cancelling with
// nothing running is harmless.
func (h *CaptureHandler) CancelAnalysis(c *gin.Context) {
	h.capture.Cancel()
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// GetStage reports the current analysis progress stage.
func (h *CaptureHandler) GetStage(c *gin.Context) {
	c.JSON(http.StatusOK, h.analysis.CurrentStage())
}

// GetDraft restores a preserved capture draft so the client can offer a
// retry after a failed or cancelled submission.
func (h *CaptureHandler) GetDraft(c *gin.Context) {
	if h.drafts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "draft storage unavailable"})
		return
	}

	draft, err := h.drafts.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Draft not found"})
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *CaptureHandler) DeleteDraft(c *gin.Context) {
	if h.drafts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "draft storage unavailable"})
		return
	}

	if err := h.drafts.DeleteDraft(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete draft"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// statusForErrorCode maps an analysis error code onto an HTTP status.
func statusForErrorCode(code string) int {
	switch code {
	case service.ErrCodeValidation:
		return http.StatusBadRequest
	case service.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case service.ErrCodeNetwork:
		return http.StatusBadGateway
	case service.ErrCodeNoData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
