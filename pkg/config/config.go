package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-graveyard.
// Configuration comes from a YAML file and environment variables, with the
// environment always winning. Secrets are only read from the environment.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is parsed from JWKSEndpointsStr.
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"graveyard"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"graveyard"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis used for the cross-instance analysis lock.
// Redis is disabled when Host is empty.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port, resolving localhost when running in Docker.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

// Supported completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"claude-3-haiku-20240307"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	Timeout           time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`
	MaxRetries        int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"LLM_REQUESTS_PER_SECOND" env-default:"2"`

	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" env:"LLM_CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	CircuitBreakerReset     time.Duration `yaml:"circuit_breaker_reset" env:"LLM_CIRCUIT_BREAKER_RESET" env-default:"30s"`

	RecordConversations bool `yaml:"record_conversations" env:"LLM_RECORD_CONVERSATIONS" env-default:"true"`
}

// Detection modes.
const (
	DetectionHeuristic = "heuristic"
	DetectionHybrid    = "hybrid"
)

// AnalysisConfig tunes the pattern pipeline.
type AnalysisConfig struct {
	MinProjects               int     `yaml:"min_projects" env:"ANALYSIS_MIN_PROJECTS" env-default:"2"`
	ConfidenceThreshold       float64 `yaml:"confidence_threshold" env:"ANALYSIS_CONFIDENCE_THRESHOLD" env-default:"0.6"`
	DetectionMode             string  `yaml:"detection_mode" env:"ANALYSIS_DETECTION_MODE" env-default:"heuristic"`
	EstimatedConfidenceFactor float64 `yaml:"estimated_confidence_factor" env:"ANALYSIS_ESTIMATED_CONFIDENCE_FACTOR" env-default:"1.0"`
	CoachingHistoryLimit      int     `yaml:"coaching_history_limit" env:"ANALYSIS_COACHING_HISTORY_LIMIT" env-default:"5"`
	PostMortemHistoryLimit    int     `yaml:"post_mortem_history_limit" env:"ANALYSIS_POST_MORTEM_HISTORY_LIMIT" env-default:"3"`
	DashboardInsightLimit     int     `yaml:"dashboard_insight_limit" env:"ANALYSIS_DASHBOARD_INSIGHT_LIMIT" env-default:"5"`

	// LockTTL bounds how long one user's analysis lock is held and how long a run may take.
	LockTTL time.Duration `yaml:"lock_ttl" env:"ANALYSIS_LOCK_TTL" env-default:"2m"`
}

// Load reads DefaultPath with environment overrides.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultPath, version)
}

// LoadFrom reads the YAML file at path with environment overrides. A missing
// file is not an error; configuration then comes from the environment alone.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderAnthropic, ProviderOpenAI, c.LLM.Provider)
	}
	switch c.Analysis.DetectionMode {
	case DetectionHeuristic, DetectionHybrid:
	default:
		return fmt.Errorf("analysis.detection_mode must be %q or %q, got %q", DetectionHeuristic, DetectionHybrid, c.Analysis.DetectionMode)
	}
	if c.Analysis.ConfidenceThreshold < 0 || c.Analysis.ConfidenceThreshold >= 1 {
		return fmt.Errorf("analysis.confidence_threshold must be in [0, 1), got %v", c.Analysis.ConfidenceThreshold)
	}
	if c.Analysis.EstimatedConfidenceFactor <= 0 || c.Analysis.EstimatedConfidenceFactor > 1 {
		return fmt.Errorf("analysis.estimated_confidence_factor must be in (0, 1], got %v", c.Analysis.EstimatedConfidenceFactor)
	}
	if c.Analysis.MinProjects < 2 {
		return fmt.Errorf("analysis.min_projects must be at least 2, got %d", c.Analysis.MinProjects)
	}
	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth.jwks_endpoints is required when verification is enabled")
	}
	return nil
}

// parseJWKSEndpoints parses "issuer1=url1,issuer2=url2" into a map.
// URLs may themselves contain '=', so only the first one splits.
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		issuer, jwksURL = strings.TrimSpace(issuer), strings.TrimSpace(jwksURL)
		if issuer != "" && jwksURL != "" {
			endpoints[issuer] = jwksURL
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
