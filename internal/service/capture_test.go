package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nutrilog/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer returns a canned result and records the request it saw.
type fakeAnalyzer struct {
	result  *AnalysisResult
	lastReq AnalysisRequest
	calls   int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) *AnalysisResult {
	f.lastReq = req
	f.calls++
	return f.result
}

func (f *fakeAnalyzer) Cancel()                    {}
func (f *fakeAnalyzer) CurrentStage() StageInfo    { return stageIdle }
func (f *fakeAnalyzer) OnStage(fn func(StageInfo)) {}

// memDrafts is an in-memory DraftStore.
type memDrafts struct {
	drafts map[string]*CaptureDraft
	saves  int
}

func newMemDrafts() *memDrafts {
	return &memDrafts{drafts: make(map[string]*CaptureDraft)}
}

func (m *memDrafts) SaveDraft(ctx context.Context, draft *CaptureDraft) error {
	copied := *draft
	m.drafts[draft.ID] = &copied
	m.saves++
	return nil
}

func (m *memDrafts) GetDraft(ctx context.Context, id string) (*CaptureDraft, error) {
	draft, ok := m.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft not found")
	}
	return draft, nil
}

func (m *memDrafts) DeleteDraft(ctx context.Context, id string) error {
	delete(m.drafts, id)
	return nil
}

func setupCapture(t *testing.T, result *AnalysisResult) (*CaptureService, *MealService, *fakeAnalyzer, *memDrafts, *Subscription) {
	meals, _ := setupMealService(t)
	analyzer := &fakeAnalyzer{result: result}
	drafts := newMemDrafts()
	notifier := NewNotifier()
	sub := notifier.Subscribe()
	t.Cleanup(sub.Close)
	return NewCaptureService(meals, analyzer, drafts, notifier), meals, analyzer, drafts, sub
}

func drainEvent(t *testing.T, sub *Subscription) string {
	t.Helper()
	select {
	case event := <-sub.C:
		return event
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
		return ""
	}
}

func TestCaptureService_CanSubmit(t *testing.T) {
	svc, _, _, _, _ := setupCapture(t, &AnalysisResult{})

	assert.False(t, svc.CanSubmit(CaptureDraft{}))
	assert.False(t, svc.CanSubmit(CaptureDraft{Text: "   "}))
	assert.True(t, svc.CanSubmit(CaptureDraft{Text: "ramen"}))
	assert.True(t, svc.CanSubmit(CaptureDraft{Transcript: "two eggs"}))
	assert.True(t, svc.CanSubmit(CaptureDraft{ImageDataURI: "data:image/jpeg;base64,aGk="}))

	svc.SetRecording(true)
	assert.False(t, svc.CanSubmit(CaptureDraft{Text: "ramen"}))
	svc.SetRecording(false)
	assert.True(t, svc.CanSubmit(CaptureDraft{Text: "ramen"}))
}

func TestCaptureService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists the meal, clears the draft and notifies", func(t *testing.T) {
		svc, meals, _, drafts, sub := setupCapture(t, &AnalysisResult{
			Data: &model.NutritionData{
				MealName:      "Grilled Chicken",
				TotalCalories: 450,
				Macros:        model.MacroBreakdown{Protein: 40, Carbohydrates: 10, Fat: 20},
			},
		})

		draft := CaptureDraft{ID: "session-1", Text: "Grilled chicken, 6oz", ImageURL: "https://bucket.s3.amazonaws.com/meal-photos/x.jpg"}
		require.NoError(t, drafts.SaveDraft(ctx, &draft))

		meal, result := svc.Submit(ctx, draft)
		require.NotNil(t, meal)
		assert.Empty(t, result.Error)
		assert.Equal(t, "Grilled Chicken", meal.Name)
		assert.Equal(t, float64(450), meal.Calories)
		assert.Equal(t, draft.ImageURL, meal.ImageURL)

		_, err := drafts.GetDraft(ctx, "session-1")
		assert.Error(t, err, "draft must be cleared after success")

		assert.Equal(t, EventMealSaved, drainEvent(t, sub))

		all, err := meals.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("retryable failure preserves the draft", func(t *testing.T) {
		svc, meals, _, drafts, _ := setupCapture(t, &AnalysisResult{
			Error:     "the analysis service is temporarily unavailable",
			ErrorCode: ErrCodeNetwork,
			Retryable: true,
		})

		draft := CaptureDraft{ID: "session-2", Text: "pad thai"}
		meal, result := svc.Submit(ctx, draft)

		assert.Nil(t, meal)
		assert.True(t, result.Retryable)

		preserved, err := drafts.GetDraft(ctx, "session-2")
		require.NoError(t, err)
		assert.Equal(t, "pad thai", preserved.Text)

		all, err := meals.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("NO_DATA is treated like a retryable failure", func(t *testing.T) {
		svc, _, _, drafts, _ := setupCapture(t, &AnalysisResult{
			Error:     "no nutrition data could be derived",
			ErrorCode: ErrCodeNoData,
			Retryable: true,
		})

		_, result := svc.Submit(ctx, CaptureDraft{ID: "session-3", Text: "mystery stew"})
		assert.Equal(t, ErrCodeNoData, result.ErrorCode)

		_, err := drafts.GetDraft(ctx, "session-3")
		assert.NoError(t, err, "draft must survive a NO_DATA outcome")
	})

	t.Run("non-retryable failure clears the draft", func(t *testing.T) {
		svc, _, _, drafts, _ := setupCapture(t, &AnalysisResult{
			Error:     "the analysis service rejected this input",
			ErrorCode: ErrCodeValidation,
			Retryable: false,
		})

		draft := CaptureDraft{ID: "session-4", Text: "???"}
		require.NoError(t, drafts.SaveDraft(ctx, &draft))

		_, result := svc.Submit(ctx, draft)
		assert.False(t, result.Retryable)

		_, err := drafts.GetDraft(ctx, "session-4")
		assert.Error(t, err, "draft must be cleared when resubmission is futile")
	})

	t.Run("cancelled analysis persists nothing", func(t *testing.T) {
		svc, meals, _, _, _ := setupCapture(t, &AnalysisResult{Cancelled: true})

		meal, result := svc.Submit(ctx, CaptureDraft{ID: "session-5", Text: "abandoned"})
		assert.Nil(t, meal)
		assert.True(t, result.Cancelled)

		all, err := meals.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("empty draft is rejected before any I/O", func(t *testing.T) {
		svc, _, analyzer, _, _ := setupCapture(t, &AnalysisResult{})

		_, result := svc.Submit(ctx, CaptureDraft{ID: "session-6"})
		assert.Equal(t, ErrCodeValidation, result.ErrorCode)
		assert.Zero(t, analyzer.calls)
	})

	t.Run("transcript is used when no text was typed", func(t *testing.T) {
		svc, _, analyzer, _, _ := setupCapture(t, &AnalysisResult{
			Data: &model.NutritionData{MealName: "Eggs", TotalCalories: 150},
		})

		_, result := svc.Submit(ctx, CaptureDraft{ID: "session-7", Transcript: "two scrambled eggs"})
		assert.Empty(t, result.Error)
		assert.Equal(t, "two scrambled eggs", analyzer.lastReq.Message)
	})
}

func TestCaptureService_AddFromHistory(t *testing.T) {
	svc, meals, _, _, sub := setupCapture(t, &AnalysisResult{})
	ctx := context.Background()

	original, err := meals.Save(ctx, MealInput{Name: "Burrito"})
	require.NoError(t, err)

	added, errs := svc.AddFromHistory(ctx, []uuid.UUID{original.ID, uuid.New()})
	assert.Len(t, added, 1)
	assert.Error(t, errs[1])

	assert.Equal(t, EventMealSaved, drainEvent(t, sub))
}
