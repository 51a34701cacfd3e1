package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/naka-gawa/profile-stats/internal/gateway"
)

var validAffiliations = map[string]bool{
	"OWNER":               true,
	"COLLABORATOR":        true,
	"ORGANIZATION_MEMBER": true,
}

// Config holds the application configuration
type Config struct {
	// GitHub access
	GitHub GitHubConfig

	// Lines-of-code cache
	Cache CacheConfig

	// Logging configuration
	Log LogConfig
}

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	Token    string
	User     string
	Endpoint string
	Timeout  time.Duration
	// RepoAffiliations scopes the repository and star counts.
	RepoAffiliations []string
	// LocAffiliations scopes the lines-of-code crawl.
	LocAffiliations []string
}

// CacheConfig holds cache-specific configuration
type CacheConfig struct {
	Dir string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	// Try to load .env file (ignore errors - it's optional)
	_ = godotenv.Load(".env")

	timeout, err := getEnvAsDuration("HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:            os.Getenv("ACCESS_TOKEN"),
			User:             os.Getenv("USER_NAME"),
			Endpoint:         getEnv("GRAPHQL_ENDPOINT", gateway.DefaultEndpoint),
			Timeout:          timeout,
			RepoAffiliations: getEnvAsSlice("REPO_AFFILIATIONS", []string{"OWNER"}),
			LocAffiliations:  getEnvAsSlice("LOC_AFFILIATIONS", []string{"OWNER", "COLLABORATOR", "ORGANIZATION_MEMBER"}),
		},
		Cache: CacheConfig{
			Dir: getEnv("CACHE_DIR", "cache"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("ACCESS_TOKEN is required")
	}
	if c.GitHub.User == "" {
		return fmt.Errorf("USER_NAME is required")
	}
	if c.GitHub.Timeout < 0 {
		return fmt.Errorf("invalid HTTP timeout: %s", c.GitHub.Timeout)
	}
	for _, list := range [][]string{c.GitHub.RepoAffiliations, c.GitHub.LocAffiliations} {
		if len(list) == 0 {
			return fmt.Errorf("at least one repository affiliation is required")
		}
		for _, a := range list {
			if !validAffiliations[a] {
				return fmt.Errorf("unknown repository affiliation: %q", a)
			}
		}
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}
	return nil
}

// Helper functions to get environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: want a duration such as 60s", key, valueStr)
	}

	return value, nil
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	values := make([]string, 0)
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			values = append(values, v)
		}
	}
	return values
}
