package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/nutrilog/backend/internal/model"
)

// Analyzer drives a remote meal-analysis request through its progress
// stages.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) *AnalysisResult
	Cancel()
	CurrentStage() StageInfo
	OnStage(fn func(StageInfo))
}

// MealStore is the persistence boundary for recorded meals.
type MealStore interface {
	Save(ctx context.Context, input MealInput) (*model.Meal, error)
	GetAll(ctx context.Context) ([]*model.Meal, error)
	GetToday(ctx context.Context) ([]*model.Meal, error)
	Summarize(meals []*model.Meal) model.NutritionSummary
	GetByFrequency(ctx context.Context) ([]FrequentMeal, error)
	GetFavorites(ctx context.Context) ([]FrequentMeal, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ReAdd(ctx context.Context, id uuid.UUID) (*model.Meal, error)
	ReAddBatch(ctx context.Context, ids []uuid.UUID) ([]*model.Meal, []error)
	Search(ctx context.Context, query string) ([]*model.Meal, error)
}

// DraftStore persists the user's unsent capture input.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft *CaptureDraft) error
	GetDraft(ctx context.Context, id string) (*CaptureDraft, error)
	DeleteDraft(ctx context.Context, id string) error
}

// ImageStore uploads captured meal photos and returns an opaque URL. The
// underlying binary resource's lifecycle is the store's concern, not the
// meal record's.
type ImageStore interface {
	UploadMealPhoto(ctx context.Context, data []byte, contentType string) (string, error)
}

var (
	_ Analyzer   = (*AnalysisService)(nil)
	_ MealStore  = (*MealService)(nil)
	_ DraftStore = (*DraftService)(nil)
	_ ImageStore = (*ImageService)(nil)
)
