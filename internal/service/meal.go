package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nutrilog/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FavoriteThreshold is the number of recurrences of a meal name before it
// counts as a "frequently eaten" re-add suggestion.
const FavoriteThreshold = 3

// MealInput is the caller-supplied content for a new meal record.
type MealInput struct {
	Name          string                  `json:"name"`
	Notes         string                  `json:"notes"`
	ImageURL      string                  `json:"image_url"`
	Nutrition     *model.NutritionSummary `json:"nutrition_data"`
	FullNutrition *model.NutritionData    `json:"full_nutrition_data"`
}

// MealService is the single source of truth for recorded meals
type MealService struct {
	db *gorm.DB
}

// NewMealService creates a new MealService instance
func NewMealService(db *gorm.DB) *MealService {
	return &MealService{db: db}
}

// Save assigns a fresh id and timestamp, coerces malformed numeric fields
// and appends the record. Validation never rejects a meal, persistence
// failures are returned to the caller and leave prior records untouched.
func (s *MealService) Save(ctx context.Context, input MealInput) (*model.Meal, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Meal"
	}

	meal := model.Meal{
		ID:        uuid.New(),
		Name:      name,
		Notes:     input.Notes,
		Timestamp: time.Now(),
		ImageURL:  input.ImageURL,
		Embedding: GenerateEmbedding(name + " " + input.Notes),
	}

	if input.Nutrition != nil {
		meal.HasNutrition = true
		meal.Calories = clampNonNegative(input.Nutrition.Calories)
		meal.Protein = clampNonNegative(input.Nutrition.Protein)
		meal.Carbs = clampNonNegative(input.Nutrition.Carbs)
		meal.Fat = clampNonNegative(input.Nutrition.Fat)
	}

	if input.FullNutrition != nil {
		detail := *input.FullNutrition
		detail.Normalize()
		full := model.JSONBNutrition(detail)
		meal.FullNutrition = &full

		// Derive the flattened summary when only the rich detail was given.
		if input.Nutrition == nil {
			meal.HasNutrition = true
			meal.Calories = detail.TotalCalories
			meal.Protein = detail.Macros.Protein
			meal.Carbs = detail.Macros.Carbohydrates
			meal.Fat = detail.Macros.Fat
		}
	}

	if err := s.db.WithContext(ctx).Create(&meal).Error; err != nil {
		return nil, fmt.Errorf("failed to save meal: %w", err)
	}
	return &meal, nil
}

// GetAll returns every recorded meal. Insertion order is not guaranteed to
// equal chronological order, callers sort by Timestamp when order matters.
func (s *MealService) GetAll(ctx context.Context) ([]*model.Meal, error) {
	var meals []model.Meal
	if err := s.db.WithContext(ctx).Find(&meals).Error; err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	result := make([]*model.Meal, len(meals))
	for i := range meals {
		result[i] = &meals[i]
	}
	return result, nil
}

// GetToday returns meals whose timestamp falls within the local calendar
// day. The day boundary is evaluated at call time, crossing midnight
// changes the result set on the next call.
func (s *MealService) GetToday(ctx context.Context) ([]*model.Meal, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	var meals []model.Meal
	if err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&meals).Error; err != nil {
		return nil, fmt.Errorf("failed to list today's meals: %w", err)
	}
	result := make([]*model.Meal, len(meals))
	for i := range meals {
		result[i] = &meals[i]
	}
	return result, nil
}

// Summarize sums the flattened nutrition fields across the given meals. A
// meal without nutrition data contributes zero to every field. Inputs are
// never mutated.
func (s *MealService) Summarize(meals []*model.Meal) model.NutritionSummary {
	var sum model.NutritionSummary
	for _, m := range meals {
		if m == nil || !m.HasNutrition {
			continue
		}
		sum.Calories += m.Calories
		sum.Protein += m.Protein
		sum.Carbs += m.Carbs
		sum.Fat += m.Fat
	}
	return sum
}

// FrequentMeal pairs a representative meal with how often its name recurs.
type FrequentMeal struct {
	Meal  *model.Meal `json:"meal"`
	Count int         `json:"count"`
}

// GetByFrequency ranks meals by how many times a meal with the same
// case-insensitive trimmed name has been recorded, descending. Ties order
// by most-recent timestamp first. Each name is represented by its most
// recent record.
func (s *MealService) GetByFrequency(ctx context.Context) ([]FrequentMeal, error) {
	meals, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		latest *model.Meal
		count  int
	}
	buckets := make(map[string]*bucket)
	for _, m := range meals {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		b, ok := buckets[key]
		if !ok {
			buckets[key] = &bucket{latest: m, count: 1}
			continue
		}
		b.count++
		if m.Timestamp.After(b.latest.Timestamp) {
			b.latest = m
		}
	}

	ranked := make([]FrequentMeal, 0, len(buckets))
	for _, b := range buckets {
		ranked = append(ranked, FrequentMeal{Meal: b.latest, Count: b.count})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Meal.Timestamp.After(ranked[j].Meal.Timestamp)
	})
	return ranked, nil
}

// GetFavorites returns the frequency ranking filtered to names that have
// recurred at least FavoriteThreshold times.
func (s *MealService) GetFavorites(ctx context.Context) ([]FrequentMeal, error) {
	ranked, err := s.GetByFrequency(ctx)
	if err != nil {
		return nil, err
	}
	favorites := make([]FrequentMeal, 0, len(ranked))
	for _, f := range ranked {
		if f.Count >= FavoriteThreshold {
			favorites = append(favorites, f)
		}
	}
	return favorites, nil
}

// Delete removes the meal with the given id. Deleting a missing id is a
// no-op that returns false, not an error.
func (s *MealService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&model.Meal{}, "id = ?", id)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete meal: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReAdd clones an existing meal's content into a new record with a fresh
// id and timestamp ("re-add from history").
func (s *MealService) ReAdd(ctx context.Context, id uuid.UUID) (*model.Meal, error) {
	var existing model.Meal
	if err := s.db.WithContext(ctx).First(&existing, "id = ?", id).Error; err != nil {
		return nil, err
	}

	clone := existing
	clone.ID = uuid.New()
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}
	clone.Timestamp = time.Now()

	if err := s.db.WithContext(ctx).Create(&clone).Error; err != nil {
		return nil, fmt.Errorf("failed to re-add meal: %w", err)
	}
	return &clone, nil
}

// ReAddBatch re-adds several meals sequentially so each save observes the
// fully-committed effect of the previous one. A failed item does not roll
// back or block the others, errs[i] reports the outcome for ids[i].
func (s *MealService) ReAddBatch(ctx context.Context, ids []uuid.UUID) ([]*model.Meal, []error) {
	added := make([]*model.Meal, 0, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		meal, err := s.ReAdd(ctx, id)
		if err != nil {
			errs[i] = err
			continue
		}
		added = append(added, meal)
	}
	return added, errs
}

// Search finds meals matching the query. On PostgreSQL it combines
// embedding similarity with keyword matching, elsewhere it falls back to
// keyword search.
func (s *MealService) Search(ctx context.Context, query string) ([]*model.Meal, error) {
	var meals []model.Meal

	dbQuery := s.db.WithContext(ctx)
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		if s.db.Dialector.Name() == "postgres" {
			vec := GenerateEmbedding(query)
			dbQuery = dbQuery.
				Where("LOWER(name) LIKE ? OR LOWER(notes) LIKE ?", like, like).
				Clauses(clause.OrderBy{
					Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vec}},
				})
		} else {
			dbQuery = dbQuery.Where("LOWER(name) LIKE ? OR LOWER(notes) LIKE ?", like, like)
		}
	}

	if err := dbQuery.Find(&meals).Error; err != nil {
		return nil, fmt.Errorf("failed to search meals: %w", err)
	}
	result := make([]*model.Meal, len(meals))
	for i := range meals {
		result[i] = &meals[i]
	}
	return result, nil
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
