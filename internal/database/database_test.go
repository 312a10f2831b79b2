package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nutrilog/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRunMigrations_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, ""))

	meal := model.Meal{
		ID:        uuid.New(),
		Name:      "Test meal",
		Timestamp: time.Now(),
	}
	err = db.Create(&meal).Error
	assert.NoError(t, err)

	var loaded model.Meal
	require.NoError(t, db.First(&loaded, "id = ?", meal.ID).Error)
	assert.Equal(t, "Test meal", loaded.Name)
}
