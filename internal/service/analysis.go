package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nutrilog/backend/internal/model"
)

// Stage identifies one phase of the analysis progress timeline.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageAnalyzingImage       Stage = "analyzing_image"
	StageAnalyzingMeal        Stage = "analyzing_meal"
	StageSearchingWeb         Stage = "searching_web"
	StageCalculatingNutrition Stage = "calculating_nutrition"
	StageFinalizing           Stage = "finalizing"
)

// Error codes surfaced to callers.
const (
	ErrCodeNetwork    = "NETWORK_ERROR"
	ErrCodeTimeout    = "TIMEOUT"
	ErrCodeNoData     = "NO_DATA"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeUnknown    = "UNKNOWN"
)

// StageInfo carries the progress weight and message pair shown while a
// stage is active.
type StageInfo struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Detail   string `json:"detail"`
}

var stageIdle = StageInfo{Stage: StageIdle, Progress: 0}

// The stages are a client-side timeline correlated with expected backend
// phases, not server-pushed events. They must be emitted in this order and
// never skipped (the image stage only runs when an image is attached).
var stageTimeline = map[Stage]StageInfo{
	StageAnalyzingImage:       {Stage: StageAnalyzingImage, Progress: 20, Message: "Analyzing your photo", Detail: "Identifying foods in the image"},
	StageAnalyzingMeal:        {Stage: StageAnalyzingMeal, Progress: 40, Message: "Analyzing your meal", Detail: "Breaking down the description"},
	StageSearchingWeb:         {Stage: StageSearchingWeb, Progress: 60, Message: "Searching nutrition sources", Detail: "Cross-referencing food databases"},
	StageCalculatingNutrition: {Stage: StageCalculatingNutrition, Progress: 80, Message: "Calculating nutrition", Detail: "Estimating calories and macros"},
	StageFinalizing:           {Stage: StageFinalizing, Progress: 95, Message: "Finalizing results", Detail: "Preparing your nutrition breakdown"},
}

// AnalysisRequest is the input for one analysis run. Message may be empty
// only when an image is attached.
type AnalysisRequest struct {
	Message      string `json:"message"`
	ImageName    string `json:"image_name,omitempty"`
	ImageType    string `json:"image_type,omitempty"`
	ImageDataURI string `json:"image_data,omitempty"`
}

// HasImage reports whether an image is attached to the request.
func (r AnalysisRequest) HasImage() bool {
	return r.ImageDataURI != ""
}

// AnalysisResult is the discriminated outcome of one analysis run. Exactly
// one of Data/Error is populated on terminal completion; Retryable is only
// meaningful when Error is set.
type AnalysisResult struct {
	Data      *model.NutritionData `json:"data,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorCode string               `json:"error_code,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
	Cancelled bool                 `json:"-"`
}

// AnalysisService drives a single remote meal-analysis request through the
// observable progress stages, supports cancellation and classifies the
// outcome.
type AnalysisService struct {
	apiKey    string
	apiURL    string
	client    *http.Client
	stagePace time.Duration

	mu         sync.Mutex
	stage      StageInfo
	generation uint64
	cancel     context.CancelFunc
	listener   func(StageInfo)
}

// NewAnalysisService creates a new AnalysisService instance
func NewAnalysisService() (*AnalysisService, error) {
	apiKey := os.Getenv("ANALYSIS_API_KEY")
	if apiKey == "" {
		if apiKeyFile := os.Getenv("ANALYSIS_API_KEY_FILE"); apiKeyFile != "" {
			apiKeyBytes, err := os.ReadFile(apiKeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read API key file: %w", err)
			}
			apiKey = strings.TrimSpace(string(apiKeyBytes))
		}
	}

	apiURL := os.Getenv("ANALYSIS_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("ANALYSIS_API_URL must be set")
	}

	return &AnalysisService{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		stagePace: 300 * time.Millisecond,
		stage:     stageIdle,
	}, nil
}

// OnStage registers a listener invoked on every stage transition.
func (s *AnalysisService) OnStage(fn func(StageInfo)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// CurrentStage returns the stage currently shown to the UI.
func (s *AnalysisService) CurrentStage() StageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Cancel aborts the in-flight remote call and forces an immediate
// transition back to idle. A result arriving after cancellation is
// discarded rather than applied. Safe to call at any time.
func (s *AnalysisService) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	// Bump the generation so any pending transitions from the aborted run
	// are recognized as stale.
	s.generation++
	s.stage = stageIdle
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(stageIdle)
	}
}

// Analyze runs one remote analysis request. Expected failure modes are
// returned inside the result, never as a panic or a Go error. A second
// call while one is in flight supersedes the first for UI-observable
// state.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) *AnalysisResult {
	if strings.TrimSpace(req.Message) == "" && !req.HasImage() {
		return &AnalysisResult{
			Error:     "nothing to analyze: provide a description or a photo",
			ErrorCode: ErrCodeValidation,
			Retryable: false,
		}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		// A well-behaved caller never gets here, but a superseding call
		// must not corrupt state: abort the previous run.
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.finish(gen)
	}()

	if req.HasImage() {
		if !s.advance(runCtx, gen, StageAnalyzingImage) {
			return &AnalysisResult{Cancelled: true}
		}
	}
	if !s.advance(runCtx, gen, StageAnalyzingMeal) {
		return &AnalysisResult{Cancelled: true}
	}
	if !s.advance(runCtx, gen, StageSearchingWeb) {
		return &AnalysisResult{Cancelled: true}
	}

	body, result := s.call(runCtx, req)
	if result != nil {
		return result
	}

	s.transition(gen, stageTimeline[StageCalculatingNutrition])

	data, ok := extractNutrition(body)
	if !ok {
		return &AnalysisResult{
			Error:     "no nutrition data could be derived from the response",
			ErrorCode: ErrCodeNoData,
			Retryable: true,
		}
	}

	s.transition(gen, stageTimeline[StageFinalizing])

	data.Normalize()

	// A result that arrives after cancellation is discarded, not applied.
	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale || runCtx.Err() != nil {
		return &AnalysisResult{Cancelled: true}
	}

	return &AnalysisResult{Data: data}
}

// advance emits the stage and waits out its pacing delay, reporting false
// when the run was cancelled meanwhile.
func (s *AnalysisService) advance(ctx context.Context, gen uint64, stage Stage) bool {
	if ctx.Err() != nil {
		return false
	}
	s.transition(gen, stageTimeline[stage])
	if s.stagePace <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.stagePace):
		return true
	}
}

// transition applies a stage change unless the run has been superseded.
func (s *AnalysisService) transition(gen uint64, info StageInfo) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.stage = info
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(info)
	}
}

// finish restores idle once a run reaches any terminal outcome.
func (s *AnalysisService) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	s.stage = stageIdle
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(stageIdle)
	}
}

type analysisAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

type analysisMessage struct {
	Role                    string               `json:"role"`
	Content                 string               `json:"content"`
	ExperimentalAttachments []analysisAttachment `json:"experimental_attachments,omitempty"`
}

type analysisRequestBody struct {
	Structured bool              `json:"structured"`
	Messages   []analysisMessage `json:"messages"`
}

// call performs the remote request and classifies transport and status
// failures. It returns the raw body on success, or a terminal result.
func (s *AnalysisService) call(ctx context.Context, req AnalysisRequest) ([]byte, *AnalysisResult) {
	msg := analysisMessage{Role: "user", Content: req.Message}
	if req.HasImage() {
		name := req.ImageName
		if name == "" {
			name = "meal.jpg"
		}
		contentType := req.ImageType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		msg.ExperimentalAttachments = []analysisAttachment{{
			Name:        name,
			ContentType: contentType,
			URL:         req.ImageDataURI,
		}}
	}

	jsonData, err := json.Marshal(analysisRequestBody{Structured: true, Messages: []analysisMessage{msg}})
	if err != nil {
		return nil, &AnalysisResult{
			Error:     "failed to encode analysis request",
			ErrorCode: ErrCodeUnknown,
			Retryable: false,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &AnalysisResult{
			Error:     "failed to build analysis request",
			ErrorCode: ErrCodeUnknown,
			Retryable: false,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, &AnalysisResult{Cancelled: true}
		}
		var urlErr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &urlErr) && urlErr.Timeout()) {
			return nil, &AnalysisResult{
				Error:     "the analysis request timed out",
				ErrorCode: ErrCodeTimeout,
				Retryable: true,
			}
		}
		log.Printf("[AnalysisService] request failed: %v", err)
		return nil, &AnalysisResult{
			Error:     "could not reach the analysis service",
			ErrorCode: ErrCodeNetwork,
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AnalysisResult{
			Error:     "failed to read the analysis response",
			ErrorCode: ErrCodeNetwork,
			Retryable: true,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}
	return body, nil
}

// classifyStatus maps a non-2xx response to the error taxonomy. Transient
// server trouble is retryable, validation and content-policy rejections
// are not: resubmitting the same input will not help.
func classifyStatus(status int, body []byte) *AnalysisResult {
	log.Printf("[AnalysisService] endpoint returned status %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &AnalysisResult{
			Error:     "the analysis request timed out",
			ErrorCode: ErrCodeTimeout,
			Retryable: true,
		}
	case status == http.StatusTooManyRequests || status >= 500:
		return &AnalysisResult{
			Error:     "the analysis service is temporarily unavailable",
			ErrorCode: ErrCodeNetwork,
			Retryable: true,
		}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusForbidden:
		return &AnalysisResult{
			Error:     "the analysis service rejected this input",
			ErrorCode: ErrCodeValidation,
			Retryable: false,
		}
	default:
		return &AnalysisResult{
			Error:     fmt.Sprintf("analysis failed with status %d", status),
			ErrorCode: ErrCodeUnknown,
			Retryable: true,
		}
	}
}

var (
	caloriePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:k?cal(?:orie)?s?)`)
	proteinPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*g(?:rams)?\s*(?:of\s+)?protein`)
	carbsPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*g(?:rams)?\s*(?:of\s+)?carb(?:ohydrate)?s?`)
	fatPattern     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*g(?:rams)?\s*(?:of\s+)?fat`)
)

// extractNutrition tolerates the three response shapes the endpoint is
// known to produce: the full nested object, a flat calories/protein/
// carbs/fat summary, and free text parsed by pattern extraction. When
// none match the outcome is NO_DATA, not an error.
func extractNutrition(body []byte) (*model.NutritionData, bool) {
	payload := unwrapChatEnvelope(body)

	// Shape detection goes by key presence, not by value: a zero-calorie
	// meal (black coffee, water) is a complete answer, not missing data.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err == nil {
		// Shape 1: nested NutritionData.
		if hasKey(keys, "totalCalories") || hasKey(keys, "macros") {
			var nested model.NutritionData
			if err := json.Unmarshal(payload, &nested); err == nil {
				return &nested, true
			}
		}

		// Shape 2: flat summary fields.
		if hasKey(keys, "calories") {
			var flat struct {
				MealName string  `json:"meal_name"`
				Name     string  `json:"name"`
				Calories float64 `json:"calories"`
				Protein  float64 `json:"protein"`
				Carbs    float64 `json:"carbs"`
				Fat      float64 `json:"fat"`
			}
			if err := json.Unmarshal(payload, &flat); err == nil {
				name := flat.MealName
				if name == "" {
					name = flat.Name
				}
				return &model.NutritionData{
					MealName:      name,
					TotalCalories: flat.Calories,
					Macros: model.MacroBreakdown{
						Protein:       flat.Protein,
						Carbohydrates: flat.Carbs,
						Fat:           flat.Fat,
					},
				}, true
			}
		}
	}

	// Shape 3: free-text fallback.
	text := string(payload)
	data := &model.NutritionData{}
	found := false
	if v, ok := firstNumber(caloriePattern, text); ok {
		data.TotalCalories = v
		found = true
	}
	if v, ok := firstNumber(proteinPattern, text); ok {
		data.Macros.Protein = v
		found = true
	}
	if v, ok := firstNumber(carbsPattern, text); ok {
		data.Macros.Carbohydrates = v
		found = true
	}
	if v, ok := firstNumber(fatPattern, text); ok {
		data.Macros.Fat = v
		found = true
	}
	if found {
		return data, true
	}

	return nil, false
}

// unwrapChatEnvelope unwraps a chat-completion style wrapper when present,
// otherwise returns the body unchanged.
func unwrapChatEnvelope(body []byte) []byte {
	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Choices) > 0 {
		return []byte(envelope.Choices[0].Message.Content)
	}
	return body
}

func hasKey(keys map[string]json.RawMessage, name string) bool {
	_, ok := keys[name]
	return ok
}

func firstNumber(pattern *regexp.Regexp, text string) (float64, bool) {
	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
