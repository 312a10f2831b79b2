package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// MealType values produced by the analysis endpoint.
const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
	MealTypeOther     = "other"
)

// Recommendation types.
const (
	RecommendationPositive = "positive"
	RecommendationCaution  = "caution"
)

// MacroBreakdown represents macronutrients in grams
type MacroBreakdown struct {
	Protein       float64 `json:"protein"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fat           float64 `json:"fat"`
	Fiber         float64 `json:"fiber"`
	Sugar         float64 `json:"sugar"`
}

// Micronutrients represents optional micronutrient values in milligrams
type Micronutrients struct {
	Sodium    *float64 `json:"sodium,omitempty"`
	Potassium *float64 `json:"potassium,omitempty"`
	VitaminC  *float64 `json:"vitaminC,omitempty"`
	Calcium   *float64 `json:"calcium,omitempty"`
	Iron      *float64 `json:"iron,omitempty"`
}

// Recommendation is a single piece of dietary advice attached to an analysis
type Recommendation struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// UnmarshalJSON accepts both the bare-string and the tagged object form the
// endpoint is known to emit, so downstream consumers only ever see the
// normalized shape.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	// Try to unmarshal as string first
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		r.Text = str
		r.Type = RecommendationPositive
		return nil
	}

	// Try to unmarshal as object
	var obj struct {
		Text string `json:"text"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		r.Text = obj.Text
		r.Type = obj.Type
		if r.Type != RecommendationPositive && r.Type != RecommendationCaution {
			r.Type = RecommendationPositive
		}
		return nil
	}

	return fmt.Errorf("invalid recommendation format")
}

// Source is a web reference the analysis cited
type Source struct {
	Title     string `json:"title,omitempty"`
	Domain    string `json:"domain,omitempty"`
	URL       string `json:"url"`
	Relevance string `json:"relevance"`
	Snippet   string `json:"snippet,omitempty"`
}

// NutritionData is the full analysis result for one meal, immutable once
// produced.
type NutritionData struct {
	MealName        string           `json:"mealName"`
	TotalCalories   float64          `json:"totalCalories"`
	Macros          MacroBreakdown   `json:"macros"`
	Micronutrients  *Micronutrients  `json:"micronutrients,omitempty"`
	Ingredients     []string         `json:"ingredients"`
	HealthScore     float64          `json:"healthScore"`
	Recommendations []Recommendation `json:"recommendations"`
	PortionSize     string           `json:"portionSize"`
	MealType        string           `json:"mealType"`
	Sources         []Source         `json:"sources,omitempty"`
}

// Normalize clamps numeric fields into valid ranges and defaults the meal
// type. Negative values are coerced rather than rejected, meals remain
// insertable with partial data.
func (n *NutritionData) Normalize() {
	if n.TotalCalories < 0 {
		n.TotalCalories = 0
	}
	if n.Macros.Protein < 0 {
		n.Macros.Protein = 0
	}
	if n.Macros.Carbohydrates < 0 {
		n.Macros.Carbohydrates = 0
	}
	if n.Macros.Fat < 0 {
		n.Macros.Fat = 0
	}
	if n.Macros.Fiber < 0 {
		n.Macros.Fiber = 0
	}
	if n.Macros.Sugar < 0 {
		n.Macros.Sugar = 0
	}
	if n.HealthScore < 0 {
		n.HealthScore = 0
	}
	if n.HealthScore > 10 {
		n.HealthScore = 10
	}
	switch strings.ToLower(strings.TrimSpace(n.MealType)) {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		n.MealType = strings.ToLower(strings.TrimSpace(n.MealType))
	default:
		n.MealType = MealTypeOther
	}
}

// JSONBNutrition is a custom type for persisting the full nutrition detail
// as JSONB
type JSONBNutrition NutritionData

// Value implements the driver.Valuer interface
func (n JSONBNutrition) Value() (driver.Value, error) {
	return json.Marshal(n)
}

// Scan implements the sql.Scanner interface
func (n *JSONBNutrition) Scan(value interface{}) error {
	if value == nil {
		*n = JSONBNutrition{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, n)
}
