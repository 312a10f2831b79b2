package service

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nutrilog/backend/internal/model"
)

// CaptureService sequences a user-facing submission: validate there is
// content, run the analysis pipeline, and on success persist the meal and
// signal listeners. On failure it decides whether the draft survives.
type CaptureService struct {
	meals    MealStore
	analysis Analyzer
	drafts   DraftStore
	notifier *Notifier

	mu        sync.Mutex
	inFlight  bool
	recording bool
}

// NewCaptureService creates a new CaptureService instance
func NewCaptureService(meals MealStore, analysis Analyzer, drafts DraftStore, notifier *Notifier) *CaptureService {
	return &CaptureService{
		meals:    meals,
		analysis: analysis,
		drafts:   drafts,
		notifier: notifier,
	}
}

// SetRecording marks a conflicting input capture (voice recording) as
// active or inactive.
func (s *CaptureService) SetRecording(active bool) {
	s.mu.Lock()
	s.recording = active
	s.mu.Unlock()
}

// CanSubmit reports whether the draft has submittable content and no
// analysis or conflicting capture is in flight.
func (s *CaptureService) CanSubmit(draft CaptureDraft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight || s.recording {
		return false
	}
	return strings.TrimSpace(draftMessage(draft)) != "" || draft.ImageDataURI != ""
}

// Submit runs the full capture flow. Expected failures come back inside
// the result; the returned meal is non-nil only on success.
func (s *CaptureService) Submit(ctx context.Context, draft CaptureDraft) (*model.Meal, *AnalysisResult) {
	s.mu.Lock()
	if s.inFlight || s.recording {
		s.mu.Unlock()
		return nil, &AnalysisResult{
			Error:     "another submission is already in progress",
			ErrorCode: ErrCodeValidation,
			Retryable: false,
		}
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	message := strings.TrimSpace(draftMessage(draft))
	if message == "" && draft.ImageDataURI == "" {
		return nil, &AnalysisResult{
			Error:     "nothing to submit: add a description or a photo",
			ErrorCode: ErrCodeValidation,
			Retryable: false,
		}
	}

	result := s.analysis.Analyze(ctx, AnalysisRequest{
		Message:      message,
		ImageName:    draft.ImageName,
		ImageType:    draft.ImageType,
		ImageDataURI: draft.ImageDataURI,
	})

	if result.Cancelled {
		// Nothing was persisted; the draft stays for the next attempt.
		s.preserveDraft(ctx, draft)
		return nil, result
	}

	if result.Error != "" {
		if result.Retryable {
			s.preserveDraft(ctx, draft)
		} else {
			// Resubmitting the same input would fail again, so retaining
			// the draft offers no benefit.
			s.clearDraft(ctx, draft.ID)
		}
		return nil, result
	}

	name := result.Data.MealName
	if name == "" {
		name = message
	}
	meal, err := s.meals.Save(ctx, MealInput{
		Name:          name,
		Notes:         message,
		ImageURL:      draft.ImageURL,
		FullNutrition: result.Data,
	})
	if err != nil {
		log.Printf("[CaptureService] failed to persist analyzed meal: %v", err)
		s.preserveDraft(ctx, draft)
		return nil, &AnalysisResult{
			Error:     "the meal could not be saved, please try again",
			ErrorCode: ErrCodeUnknown,
			Retryable: true,
		}
	}

	s.clearDraft(ctx, draft.ID)
	s.notifier.Publish(EventMealSaved)
	return meal, result
}

// Cancel aborts the in-flight analysis, if any.
func (s *CaptureService) Cancel() {
	s.analysis.Cancel()
}

// AddFromHistory re-adds the given meals sequentially and emits a single
// refresh signal when at least one succeeded. Per-item failures do not
// block the rest.
func (s *CaptureService) AddFromHistory(ctx context.Context, ids []uuid.UUID) ([]*model.Meal, []error) {
	added, errs := s.meals.ReAddBatch(ctx, ids)
	if len(added) > 0 {
		s.notifier.Publish(EventMealSaved)
	}
	return added, errs
}

func (s *CaptureService) preserveDraft(ctx context.Context, draft CaptureDraft) {
	if s.drafts == nil || draft.ID == "" {
		return
	}
	if err := s.drafts.SaveDraft(ctx, &draft); err != nil {
		log.Printf("[CaptureService] failed to preserve draft %s: %v", draft.ID, err)
	}
}

func (s *CaptureService) clearDraft(ctx context.Context, id string) {
	if s.drafts == nil || id == "" {
		return
	}
	if err := s.drafts.DeleteDraft(ctx, id); err != nil {
		log.Printf("[CaptureService] failed to clear draft %s: %v", id, err)
	}
}

// draftMessage merges typed text with the voice transcript, preferring the
// typed text when both are present.
func draftMessage(draft CaptureDraft) string {
	if strings.TrimSpace(draft.Text) != "" {
		return draft.Text
	}
	return draft.Transcript
}
