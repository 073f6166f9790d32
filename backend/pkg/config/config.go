package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "contentgraph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string `validate:"required,numeric"`
	Env      string `validate:"oneof=development production test"`
	LogLevel string `validate:"omitempty,oneof=debug info warn error"`

	// Content
	ContentDir     string `validate:"required"`
	SchemaFile     string // Optional YAML schema descriptor
	MenuCollection string `validate:"required"`
	StaticMenuFile string // Optional pre-seeded menu records

	// Entry store
	StoreBackend string `validate:"oneof=fs memory neo4j"`

	// Neo4j
	Neo4jURI      string `validate:"required_if=StoreBackend neo4j"`
	Neo4jUser     string `validate:"required_if=StoreBackend neo4j"`
	Neo4jPassword string

	// Graph
	IncludeIndirect  bool
	MaxIndirectDepth int `validate:"min=1,max=16"`

	// Watch mode
	Watch           bool
	WatchDebounceMS int `validate:"min=0"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		ContentDir:       getEnv("CONTENT_DIR", "content"),
		SchemaFile:       getEnv("SCHEMA_FILE", ""),
		MenuCollection:   getEnv("MENU_COLLECTION", "menus"),
		StaticMenuFile:   getEnv("STATIC_MENU_FILE", ""),
		StoreBackend:     getEnv("STORE_BACKEND", "fs"),
		Neo4jURI:         getEnv("NEO4J_URI", ""),
		Neo4jUser:        getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("NEO4J_PASSWORD", ""),
		IncludeIndirect:  getEnvBool("INCLUDE_INDIRECT", false),
		MaxIndirectDepth: getEnvInt("MAX_INDIRECT_DEPTH", 3),
		Watch:            getEnvBool("WATCH", false),
		WatchDebounceMS:  getEnvInt("WATCH_DEBOUNCE_MS", 200),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if apperrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" || fe.Tag() == "required_if" {
			return apperrors.NewConfigMissingRequired(fe.Field())
		}
		return apperrors.NewConfigValidationFailed(fe.Field(), fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value()))
	}
	return err
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
