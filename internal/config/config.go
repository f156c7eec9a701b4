package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/pulse/pulse/internal/platform/llm"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	AuthMode         string        `mapstructure:"AUTH_MODE"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir    string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL      string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	AgentRateLimit   float64       `mapstructure:"AGENT_RATE_LIMIT_RPS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LLMAPIKey        string        `mapstructure:"LLM_API_KEY"`
	LLMBaseURL       string        `mapstructure:"LLM_BASE_URL"`
	LLMDefaultModel  string        `mapstructure:"LLM_DEFAULT_MODEL"`
	AgentConcurrency int           `mapstructure:"AGENT_CONCURRENCY"`
	AgentTimeout     time.Duration `mapstructure:"AGENT_TIMEOUT"`
	AuditBufferSize  int           `mapstructure:"AUDIT_BUFFER_SIZE"`
	ClinicTZ         string        `mapstructure:"CLINIC_TZ"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "REDIS_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"AGENT_RATE_LIMIT_RPS", "REQUEST_TIMEOUT", "LLM_API_KEY", "LLM_BASE_URL",
	"LLM_DEFAULT_MODEL", "AGENT_CONCURRENCY", "AGENT_TIMEOUT", "AUDIT_BUFFER_SIZE",
	"CLINIC_TZ",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "3001")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("AGENT_RATE_LIMIT_RPS", 2)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LLM_DEFAULT_MODEL", "gpt-5-nano")
	v.SetDefault("AGENT_CONCURRENCY", 8)
	v.SetDefault("AGENT_TIMEOUT", "10m")
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("CLINIC_TZ", "UTC")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	// OPENAI_API_KEY is accepted as a fallback for the model key.
	_ = v.BindEnv("LLM_API_KEY", "LLM_API_KEY", "OPENAI_API_KEY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - otherwise       → "jwt" (bearer tokens checked against AUTH_SIGNING_KEY or JWKS)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// ClinicLocation is the zone appointment dates are calendar days in.
func (c *Config) ClinicLocation() (*time.Location, error) {
	if c.ClinicTZ == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.ClinicTZ)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TZ: %w", err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_MODE=jwt needs AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER")
	}
	if c.IsProduction() && mode == "development" {
		return fmt.Errorf("AUTH_MODE=development is not allowed in production")
	}

	if c.LLMAPIKey == "" && c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_API_KEY (or OPENAI_API_KEY) is required")
	}
	if _, err := llm.LookupModel(c.LLMDefaultModel, ""); err != nil {
		return fmt.Errorf("LLM_DEFAULT_MODEL must be one of %s: %w", strings.Join(llm.Models(), ", "), err)
	}
	if _, err := c.ClinicLocation(); err != nil {
		return err
	}
	if c.AgentConcurrency < 1 {
		return fmt.Errorf("AGENT_CONCURRENCY must be at least 1, got %d", c.AgentConcurrency)
	}
	if c.AuditBufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1, got %d", c.AuditBufferSize)
	}
	return nil
}
