package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigRequirements defines required configuration for each environment
type ConfigRequirements struct {
	RequireAnalysisEndpoint bool
	RequireCredentials      bool
}

var (
	// Environment-specific requirements. Development and Test run on
	// defaults so local work and unit tests need no setup; CI and
	// Production must be configured explicitly.
	requirements = map[Environment]ConfigRequirements{
		Development: {},
		Test:        {},
		CI:          {},
		Production: {
			RequireAnalysisEndpoint: true,
			RequireCredentials:      true,
		},
	}
)

// ValidateConfig checks if the configuration meets the requirements for the
// given environment.
func ValidateConfig(cfg *Config, env Environment) error {
	reqs := requirements[env]

	var errors []string

	if cfg.ServerPort == "" {
		errors = append(errors, "SERVER_PORT must not be empty")
	}
	if cfg.DBHost == "" || cfg.DBPort == "" || cfg.DBName == "" {
		errors = append(errors, "database host, port and name are required")
	}

	if reqs.RequireAnalysisEndpoint && cfg.AnalysisAPIURL == "" {
		errors = append(errors, "ANALYSIS_API_URL is required in this environment")
	}

	if reqs.RequireCredentials {
		if cfg.DBPassword == "" {
			errors = append(errors, "db_password secret or DB_PASSWORD is required")
		}
		if cfg.AnalysisAPIKey == "" {
			errors = append(errors, "analysis_api_key secret or ANALYSIS_API_KEY is required")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}
