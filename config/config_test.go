package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Set test environment variables
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("DB_USER", "postgres")
	os.Setenv("DB_PASSWORD", "postgres")
	os.Setenv("DB_NAME", "nutrilog")
	os.Setenv("DB_SSL_MODE", "disable")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("ANALYSIS_API_URL", "https://analysis.example.com/api/chat")
	defer os.Unsetenv("ANALYSIS_API_URL")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	// Test database configuration
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "postgres", cfg.DBUser)
	assert.Equal(t, "postgres", cfg.DBPassword)
	assert.Equal(t, "nutrilog", cfg.DBName)
	assert.Equal(t, "disable", cfg.DBSSLMode)

	// Test Redis configuration
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)

	// Test analysis endpoint configuration
	assert.Equal(t, "https://analysis.example.com/api/chat", cfg.AnalysisAPIURL)
}

func TestLoadConfigWithDefaults(t *testing.T) {
	// Clear environment variables to test defaults
	os.Unsetenv("DB_HOST")
	os.Unsetenv("DB_PORT")
	os.Unsetenv("DB_USER")
	os.Unsetenv("DB_PASSWORD")
	os.Unsetenv("DB_NAME")
	os.Unsetenv("DB_SSL_MODE")
	os.Unsetenv("REDIS_URL")
	os.Unsetenv("S3_BUCKET_NAME")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	// Test default values
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "postgres", cfg.DBUser)
	assert.Equal(t, "postgres", cfg.DBPassword)
	assert.Equal(t, "nutrilog", cfg.DBName)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "nutrilog-meal-photos", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
}

func TestValidateConfigProduction(t *testing.T) {
	cfg := &Config{
		ServerPort: "8080",
		DBHost:     "db",
		DBPort:     "5432",
		DBName:     "nutrilog",
		DBPassword: "secret",
	}

	err := ValidateConfig(cfg, Production)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYSIS_API_URL")

	cfg.AnalysisAPIURL = "https://analysis.example.com/api/chat"
	cfg.AnalysisAPIKey = "key"
	assert.NoError(t, ValidateConfig(cfg, Production))
}
