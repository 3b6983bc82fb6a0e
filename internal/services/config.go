package services

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/trellishq/trellis/internal/models"
)

// LoadConfig loads configuration from file and merges with environment
// Priority order (highest to lowest):
//  1. CLI flags (via viper bindings)
//  2. Environment variables
//  3. Configuration file
//  4. Default values
func LoadConfig(configFile string) (*models.RunConfig, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		viper.SetConfigName("trellis")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/trellis")
		viper.AddConfigPath("/etc/trellis")
	}

	// Enable environment variable override with TRELLIS_ prefix
	viper.SetEnvPrefix("TRELLIS")
	viper.AutomaticEnv()

	registerDefaults()

	// Read config file (optional - don't fail if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Build config manually from viper values
	// (Viper.Unmarshal has issues with nested structs in some versions)
	config := models.RunConfig{
		Ontology: models.OntologyConfig{
			Sources:   viper.GetStringSlice("ontology.sources"),
			SystemURL: viper.GetString("ontology.system_url"),
		},
		Schema: models.SchemaConfig{
			RequiredFields: viper.GetStringSlice("schema.required_fields"),
			SubjectField:   viper.GetString("schema.subject_field"),
		},
		Resolver: models.ResolverConfig{
			SimilarityThreshold: viper.GetFloat64("resolver.similarity_threshold"),
		},
		Repository: models.RepositoryConfig{
			URL: viper.GetString("repository.url"),
		},
		Auth: models.AuthConfig{
			TokenURL:         viper.GetString("auth.token_url"),
			ClientID:         viper.GetString("auth.client_id"),
			ClientSecret:     viper.GetString("auth.client_secret"),
			ExpirySkewSecs:   viper.GetInt("auth.expiry_skew_seconds"),
			RetryOnTransient: viper.GetBool("auth.retry_on_transient"),
		},
		Pipeline: models.PipelineConfig{
			BatchSize:      viper.GetInt("pipeline.batch_size"),
			ResolveWorkers: viper.GetInt("pipeline.resolve_workers"),
			SubmitWorkers:  viper.GetInt("pipeline.submit_workers"),
		},
		Retry: models.RetryConfig{
			MaxAttempts:      viper.GetInt("retry.max_attempts"),
			InitialBackoffMs: viper.GetInt64("retry.initial_backoff_ms"),
			MaxBackoffMs:     viper.GetInt64("retry.max_backoff_ms"),
		},
		RunsDir: viper.GetString("runs_dir"),
	}

	// Term fields need structured decode; GetStringSlice cannot carry the
	// mandatory flag.
	var termFields []models.TermField
	if err := viper.UnmarshalKey("schema.term_fields", &termFields); err != nil {
		return nil, fmt.Errorf("invalid schema.term_fields: %w", err)
	}
	config.Schema.TermFields = termFields
	if len(config.Schema.TermFields) == 0 {
		config.Schema.TermFields = models.DefaultConfig().Schema.TermFields
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate runs directory exists and is writable
	if err := models.ValidateRunsDir(config.RunsDir); err != nil {
		// Try to create it if it doesn't exist
		if os.IsNotExist(err) {
			if createErr := os.MkdirAll(config.RunsDir, 0755); createErr != nil {
				return nil, fmt.Errorf("failed to create runs directory: %w", createErr)
			}
		} else {
			return nil, err
		}
	}

	return &config, nil
}

// registerDefaults seeds viper with DefaultConfig values so absent keys fall
// back to them while explicit zero values in the file are kept as written.
// Term fields are structured and defaulted after decode instead.
func registerDefaults() {
	defaults := models.DefaultConfig()

	viper.SetDefault("ontology.system_url", defaults.Ontology.SystemURL)
	viper.SetDefault("schema.subject_field", defaults.Schema.SubjectField)
	viper.SetDefault("schema.required_fields", defaults.Schema.RequiredFields)
	viper.SetDefault("resolver.similarity_threshold", defaults.Resolver.SimilarityThreshold)
	viper.SetDefault("auth.expiry_skew_seconds", defaults.Auth.ExpirySkewSecs)
	viper.SetDefault("auth.retry_on_transient", defaults.Auth.RetryOnTransient)
	viper.SetDefault("pipeline.batch_size", defaults.Pipeline.BatchSize)
	viper.SetDefault("pipeline.resolve_workers", defaults.Pipeline.ResolveWorkers)
	viper.SetDefault("pipeline.submit_workers", defaults.Pipeline.SubmitWorkers)
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.initial_backoff_ms", defaults.Retry.InitialBackoffMs)
	viper.SetDefault("retry.max_backoff_ms", defaults.Retry.MaxBackoffMs)
	viper.SetDefault("runs_dir", defaults.RunsDir)
}

// GetConfigFilePath returns the path to the config file that was loaded
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// SetConfigValue allows runtime override of config values
// Useful for CLI flag overrides
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}
