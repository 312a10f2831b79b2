package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CaptureDraft is the user's unsent input: typed text, a voice transcript
// and an optionally attached photo. It is preserved across retryable
// failures so the user can resubmit without re-typing.
type CaptureDraft struct {
	ID           string    `json:"id"`
	UpdatedAt    time.Time `json:"updated_at"`
	Text         string    `json:"text"`
	Transcript   string    `json:"transcript"`
	ImageName    string    `json:"image_name,omitempty"`
	ImageType    string    `json:"image_type,omitempty"`
	ImageDataURI string    `json:"image_data,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
}

// DraftService persists capture drafts in Redis
type DraftService struct {
	redis *redis.Client
}

// NewDraftService creates a new DraftService instance
func NewDraftService(redisClient *redis.Client) *DraftService {
	return &DraftService{redis: redisClient}
}

// SaveDraft stores the draft under its session id with a 24 hour TTL
func (s *DraftService) SaveDraft(ctx context.Context, draft *CaptureDraft) error {
	draft.UpdatedAt = time.Now()

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	key := fmt.Sprintf("meal:draft:%s", draft.ID)
	if err := s.redis.Set(ctx, key, data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save draft to Redis: %w", err)
	}

	return nil
}

// GetDraft retrieves a capture draft from Redis
func (s *DraftService) GetDraft(ctx context.Context, id string) (*CaptureDraft, error) {
	key := fmt.Sprintf("meal:draft:%s", id)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get draft from Redis: %w", err)
	}

	var draft CaptureDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}

	return &draft, nil
}

// DeleteDraft removes a capture draft from Redis
func (s *DraftService) DeleteDraft(ctx context.Context, id string) error {
	key := fmt.Sprintf("meal:draft:%s", id)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from Redis: %w", err)
	}

	return nil
}
