package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nutrilog/backend/config"
	"github.com/nutrilog/backend/internal/model"
)

func TestNewWithDeps(t *testing.T) {
	t.Setenv("ANALYSIS_API_URL", "http://analysis.test/api/chat")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Meal{}))

	cfg := &config.Config{
		ServerHost: "localhost",
		ServerPort: "8080",
	}

	server, err := NewWithDeps(cfg, db, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, server)

	t.Run("health endpoint", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/health", nil)
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
		assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
	})

	t.Run("meal routes registered", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/meals", nil)
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
