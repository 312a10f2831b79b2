package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nutrilog/backend/internal/model"
	"github.com/nutrilog/backend/internal/service"
)

// MealHandler serves the meal history endpoints.
type MealHandler struct {
	meals    service.MealStore
	capture  *service.CaptureService
	notifier *service.Notifier
}

func NewMealHandler(meals service.MealStore, capture *service.CaptureService, notifier *service.Notifier) *MealHandler {
	return &MealHandler{
		meals:    meals,
		capture:  capture,
		notifier: notifier,
	}
}

func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup) {
	meals := router.Group("/meals")
	{
		meals.GET("", h.ListMeals)
		meals.GET("/today", h.GetToday)
		meals.GET("/frequent", h.GetFrequent)
		meals.GET("/favorites", h.GetFavorites)
		meals.GET("/search", h.SearchMeals)
		meals.POST("", h.CreateMeal)
		meals.POST("/readd", h.ReAddMeals)
		meals.POST("/:id/readd", h.ReAddMeal)
		meals.DELETE("/:id", h.DeleteMeal)
	}
}

func (h *MealHandler) ListMeals(c *gin.Context) {
	meals, err := h.meals.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals": meals,
	})
}

// GetToday returns today's meals along with their nutrition totals. Meals
// recorded without nutrition data are included in the list but contribute
// nothing to the totals.
func (h *MealHandler) GetToday(c *gin.Context) {
	meals, err := h.meals.GetToday(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch today's meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals":  meals,
		"totals": h.meals.Summarize(meals),
	})
}

func (h *MealHandler) GetFrequent(c *gin.Context) {
	frequent, err := h.meals.GetByFrequency(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rank meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals": frequent,
	})
}

func (h *MealHandler) GetFavorites(c *gin.Context) {
	favorites, err := h.meals.GetFavorites(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch favorites"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals": favorites,
	})
}

func (h *MealHandler) SearchMeals(c *gin.Context) {
	meals, err := h.meals.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals": meals,
	})
}

// CreateMealRequest is the body for recording a meal directly, without
// running analysis. Nutrition is optional.
type CreateMealRequest struct {
	Name      string                  `json:"name" binding:"required"`
	Notes     string                  `json:"notes"`
	ImageURL  string                  `json:"image_url"`
	Nutrition *model.NutritionSummary `json:"nutrition"`
	Details   *model.NutritionData    `json:"nutrition_data"`
}

func (h *MealHandler) CreateMeal(c *gin.Context) {
	var req CreateMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meal, err := h.meals.Save(c.Request.Context(), service.MealInput{
		Name:          req.Name,
		Notes:         req.Notes,
		ImageURL:      req.ImageURL,
		Nutrition:     req.Nutrition,
		FullNutrition: req.Details,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save meal"})
		return
	}

	h.notifier.Publish(service.EventMealSaved)
	c.JSON(http.StatusCreated, meal)
}

// ReAddMealsRequest names the history entries to log again as new meals.
type ReAddMealsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// ReAddMeals clones the named meals with fresh timestamps. Each entry is
// re-added independently; a missing id fails that entry without aborting
// the rest.
func (h *MealHandler) ReAddMeals(c *gin.Context) {
	var req ReAddMealsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meal id: " + raw})
			return
		}
		ids = append(ids, id)
	}

	added, errs := h.capture.AddFromHistory(c.Request.Context(), ids)

	failed := make([]string, 0)
	for i, err := range errs {
		if err != nil {
			failed = append(failed, req.IDs[i])
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"added":  added,
		"failed": failed,
	})
}

// ReAddMeal clones a single history entry as a fresh meal.
func (h *MealHandler) ReAddMeal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meal id"})
		return
	}

	added, errs := h.capture.AddFromHistory(c.Request.Context(), []uuid.UUID{id})
	if len(errs) > 0 && errs[0] != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
		return
	}

	c.JSON(http.StatusCreated, added[0])
}

// DeleteMeal removes a meal from history. Deleting an id that does not
// exist is a no-op, not an error.
func (h *MealHandler) DeleteMeal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meal id"})
		return
	}

	deleted, err := h.meals.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete meal"})
		return
	}

	if deleted {
		h.notifier.Publish(service.EventMealDeleted)
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
		"id":      id.String(),
	})
}
