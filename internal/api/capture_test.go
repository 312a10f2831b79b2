package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilog/backend/internal/model"
	"github.com/nutrilog/backend/internal/service"
)

func TestAnalyze(t *testing.T) {
	t.Run("success saves the meal", func(t *testing.T) {
		router, deps := setupTestRouter(t)
		deps.Analyzer.result = &service.AnalysisResult{
			Data: &model.NutritionData{
				MealName:      "Chicken Caesar Salad",
				TotalCalories: 520,
				Macros:        model.MacroBreakdown{Protein: 42, Carbohydrates: 18, Fat: 30},
			},
		}

		w := performRequest(router, "POST", "/api/v1/meals/analyze", gin.H{
			"draft_id": "draft-1",
			"text":     "chicken caesar salad for lunch",
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Meal      mealPayload          `json:"meal"`
			Nutrition *model.NutritionData `json:"nutrition"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Chicken Caesar Salad", resp.Meal.Name)
		require.NotNil(t, resp.Nutrition)
		assert.Equal(t, float64(520), resp.Nutrition.TotalCalories)

		meals, err := deps.Meals.GetAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, meals, 1)
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		router, _ := setupTestRouter(t)

		w := performRequest(router, "POST", "/api/v1/meals/analyze", gin.H{
			"draft_id": "draft-1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			ErrorCode string `json:"error_code"`
			Retryable bool   `json:"retryable"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, service.ErrCodeValidation, resp.ErrorCode)
		assert.False(t, resp.Retryable)
	})

	t.Run("upstream failure maps onto the status code", func(t *testing.T) {
		router, deps := setupTestRouter(t)
		deps.Analyzer.result = &service.AnalysisResult{
			Error:     "the analysis service is unreachable",
			ErrorCode: service.ErrCodeNetwork,
			Retryable: true,
		}

		w := performRequest(router, "POST", "/api/v1/meals/analyze", gin.H{
			"draft_id": "draft-1",
			"text":     "pasta",
		})
		assert.Equal(t, http.StatusBadGateway, w.Code)

		// The retryable failure preserved the draft for the next attempt.
		draft, err := deps.Drafts.GetDraft(context.Background(), "draft-1")
		require.NoError(t, err)
		assert.Equal(t, "pasta", draft.Text)
	})

	t.Run("no data maps to 422", func(t *testing.T) {
		router, deps := setupTestRouter(t)
		deps.Analyzer.result = &service.AnalysisResult{
			Error:     "no nutrition data could be extracted",
			ErrorCode: service.ErrCodeNoData,
			Retryable: true,
		}

		w := performRequest(router, "POST", "/api/v1/meals/analyze", gin.H{
			"draft_id": "draft-1",
			"text":     "something",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("cancelled analysis reports cancelled", func(t *testing.T) {
		router, deps := setupTestRouter(t)
		deps.Analyzer.result = &service.AnalysisResult{Cancelled: true}

		w := performRequest(router, "POST", "/api/v1/meals/analyze", gin.H{
			"draft_id": "draft-1",
			"text":     "pasta",
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "cancelled")
	})
}

func TestCancelAnalysis(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, "POST", "/api/v1/meals/analyze/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetStage(t *testing.T) {
	router, deps := setupTestRouter(t)
	deps.Analyzer.stage = service.StageInfo{Stage: service.StageSearchingWeb, Progress: 60}

	w := performRequest(router, "GET", "/api/v1/meals/analyze/stage", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var stage service.StageInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stage))
	assert.Equal(t, service.StageSearchingWeb, stage.Stage)
	assert.Equal(t, 60, stage.Progress)
}

func TestDraftEndpoints(t *testing.T) {
	router, deps := setupTestRouter(t)

	require.NoError(t, deps.Drafts.SaveDraft(context.Background(), &service.CaptureDraft{
		ID:   "draft-9",
		Text: "half a burrito",
	}))

	w := performRequest(router, "GET", "/api/v1/drafts/draft-9", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var draft service.CaptureDraft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draft))
	assert.Equal(t, "half a burrito", draft.Text)

	w = performRequest(router, "DELETE", "/api/v1/drafts/draft-9", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, "GET", "/api/v1/drafts/draft-9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
