package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nutrilog/backend/internal/model"
	"github.com/nutrilog/backend/internal/service"
)

// stubAnalyzer returns a canned analysis result without touching the
// network.
type stubAnalyzer struct {
	result *service.AnalysisResult
	stage  service.StageInfo
}

func (a *stubAnalyzer) Analyze(ctx context.Context, req service.AnalysisRequest) *service.AnalysisResult {
	return a.result
}

func (a *stubAnalyzer) Cancel()                            {}
func (a *stubAnalyzer) CurrentStage() service.StageInfo    { return a.stage }
func (a *stubAnalyzer) OnStage(fn func(service.StageInfo)) {}

// memoryDrafts is an in-memory DraftStore for handler tests.
type memoryDrafts struct {
	mu     sync.Mutex
	drafts map[string]service.CaptureDraft
}

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{drafts: make(map[string]service.CaptureDraft)}
}

func (m *memoryDrafts) SaveDraft(ctx context.Context, draft *service.CaptureDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = *draft
	return nil
}

func (m *memoryDrafts) GetDraft(ctx context.Context, id string) (*service.CaptureDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &draft, nil
}

func (m *memoryDrafts) DeleteDraft(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	return nil
}

// testDeps bundles the services behind a test router.
type testDeps struct {
	DB       *gorm.DB
	Meals    *service.MealService
	Analyzer *stubAnalyzer
	Drafts   *memoryDrafts
	Notifier *service.Notifier
}

// setupTestRouter builds the API against an in-memory database and a
// stubbed analyzer.
func setupTestRouter(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Meal{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	deps := &testDeps{
		DB:       db,
		Meals:    service.NewMealService(db),
		Analyzer: &stubAnalyzer{
			result: &service.AnalysisResult{Data: &model.NutritionData{MealName: "Stub Meal", TotalCalories: 100}},
			stage:  service.StageInfo{Stage: service.StageIdle},
		},
		Drafts:   newMemoryDrafts(),
		Notifier: service.NewNotifier(),
	}

	capture := service.NewCaptureService(deps.Meals, deps.Analyzer, deps.Drafts, deps.Notifier)

	router := gin.New()
	router.Use(gin.Recovery())
	v1 := router.Group("/api/v1")
	NewMealHandler(deps.Meals, capture, deps.Notifier).RegisterRoutes(v1)
	NewCaptureHandler(capture, deps.Analyzer, deps.Drafts).RegisterRoutes(v1)
	NewEventsHandler(deps.Notifier).RegisterRoutes(v1)

	return router, deps
}

// performRequest is a helper function to make HTTP requests in tests
func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		req = httptest.NewRequest(method, path, bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	router.ServeHTTP(w, req)
	return w
}
