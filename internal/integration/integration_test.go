package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilog/backend/config"
	"github.com/nutrilog/backend/internal/model"
	"github.com/nutrilog/backend/internal/server"
	"github.com/nutrilog/backend/internal/service"
	"github.com/nutrilog/backend/internal/testhelpers"
)

// TestMealLifecycle exercises the meal store against a real pgvector
// PostgreSQL instance: save, aggregate, rank, search, re-add, delete.
func TestMealLifecycle(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	meals := service.NewMealService(db)
	ctx := context.Background()

	oatmeal, err := meals.Save(ctx, service.MealInput{
		Name:      "Oatmeal with Berries",
		Notes:     "rolled oats, blueberries",
		Nutrition: &model.NutritionSummary{Calories: 320, Protein: 11, Carbs: 58, Fat: 6},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := meals.Save(ctx, service.MealInput{
			Name:      "oatmeal with berries",
			Nutrition: &model.NutritionSummary{Calories: 320},
		})
		require.NoError(t, err)
	}

	_, err = meals.Save(ctx, service.MealInput{
		Name: "Black Coffee",
	})
	require.NoError(t, err)

	t.Run("today aggregates analyzed meals only", func(t *testing.T) {
		today, err := meals.GetToday(ctx)
		require.NoError(t, err)
		assert.Len(t, today, 4)

		totals := meals.Summarize(today)
		assert.Equal(t, float64(960), totals.Calories)
		assert.Equal(t, float64(11), totals.Protein)
	})

	t.Run("frequency ranking folds name case", func(t *testing.T) {
		frequent, err := meals.GetByFrequency(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, frequent)
		assert.Equal(t, 3, frequent[0].Count)

		favorites, err := meals.GetFavorites(ctx)
		require.NoError(t, err)
		require.Len(t, favorites, 1)
		assert.Equal(t, 3, favorites[0].Count)
	})

	t.Run("vector search orders by embedding distance", func(t *testing.T) {
		found, err := meals.Search(ctx, "oatmeal")
		require.NoError(t, err)
		require.NotEmpty(t, found)
	})

	t.Run("readd clones with fresh identity", func(t *testing.T) {
		clone, err := meals.ReAdd(ctx, oatmeal.ID)
		require.NoError(t, err)
		assert.NotEqual(t, oatmeal.ID, clone.ID)
		assert.Equal(t, oatmeal.Name, clone.Name)
		assert.True(t, clone.Timestamp.After(oatmeal.Timestamp))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		deleted, err := meals.Delete(ctx, oatmeal.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = meals.Delete(ctx, oatmeal.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

// TestServerAgainstPostgres boots the full HTTP surface on the container
// database.
func TestServerAgainstPostgres(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	t.Setenv("ANALYSIS_API_URL", "http://analysis.test/api/chat")

	cfg := &config.Config{ServerHost: "localhost", ServerPort: "0"}
	srv, err := server.NewWithDeps(cfg, db, nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/meals", jsonBody(t, map[string]interface{}{
		"name":      "Chicken Bowl",
		"nutrition": map[string]float64{"calories": 520, "protein": 42, "carbs": 55, "fat": 12},
	}))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/meals/today", nil)
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Totals model.NutritionSummary `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(520), resp.Totals.Calories)
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}
