package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// JSONBStringArray is a custom type for handling string arrays in JSONB
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (a JSONBStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface
func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
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

	return json.Unmarshal(bytes, a)
}

// NutritionSummary is the flattened nutrition view kept on each meal for
// fast aggregation.
type NutritionSummary struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Meal is a user-logged eating event. A meal with no nutrition data is
// valid, it aggregates as zero contribution.
type Meal struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Timestamp     time.Time       `gorm:"index;not null" json:"timestamp"`
	ImageURL      string          `gorm:"size:255" json:"image_url,omitempty"`
	HasNutrition  bool            `json:"-"`
	Calories      float64         `gorm:"type:float" json:"-"`
	Protein       float64         `gorm:"type:float" json:"-"`
	Carbs         float64         `gorm:"type:float" json:"-"`
	Fat           float64         `gorm:"type:float" json:"-"`
	FullNutrition *JSONBNutrition `gorm:"type:jsonb" json:"full_nutrition_data,omitempty"`
	Embedding     pgvector.Vector `gorm:"type:vector(3)" json:"-"`
}

func (Meal) TableName() string {
	return "meals"
}

// Summary returns the flattened nutrition view, or nil for meals logged
// without analysis.
func (m *Meal) Summary() *NutritionSummary {
	if !m.HasNutrition {
		return nil
	}
	return &NutritionSummary{
		Calories: m.Calories,
		Protein:  m.Protein,
		Carbs:    m.Carbs,
		Fat:      m.Fat,
	}
}

// MarshalJSON nests the flattened columns under nutrition_data so the wire
// shape distinguishes "no analysis" from "analyzed to zero".
func (m Meal) MarshalJSON() ([]byte, error) {
	type alias Meal
	return json.Marshal(struct {
		alias
		NutritionData *NutritionSummary `json:"nutrition_data,omitempty"`
	}{
		alias:         alias(m),
		NutritionData: m.Summary(),
	})
}
