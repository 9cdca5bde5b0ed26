package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthMode  string `mapstructure:"AUTH_MODE"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// GatewayMode selects the generation backend: "openai" talks to the
	// OpenAI API directly, "http" talks to a hosted generation service.
	GatewayMode        string        `mapstructure:"GATEWAY_MODE"`
	GatewayBaseURL     string        `mapstructure:"GATEWAY_BASE_URL"`
	GatewayAPIKey      string        `mapstructure:"GATEWAY_API_KEY"`
	GatewayTimeout     time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	GatewayMaxAttempts int           `mapstructure:"GATEWAY_MAX_ATTEMPTS"`
	GatewayBackoff     time.Duration `mapstructure:"GATEWAY_BACKOFF"`

	OpenAIAPIKey       string `mapstructure:"OPENAI_API_KEY"`
	OpenAIChatModel    string `mapstructure:"OPENAI_CHAT_MODEL"`
	OpenAISummaryModel string `mapstructure:"OPENAI_SUMMARY_MODEL"`

	IntakeMinQuestions int `mapstructure:"INTAKE_MIN_QUESTIONS"`
	IntakeMaxQuestions int `mapstructure:"INTAKE_MAX_QUESTIONS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("GATEWAY_MODE", "openai")
	v.SetDefault("GATEWAY_TIMEOUT", "30s")
	v.SetDefault("GATEWAY_MAX_ATTEMPTS", 3)
	v.SetDefault("GATEWAY_BACKOFF", "500ms")
	v.SetDefault("INTAKE_MIN_QUESTIONS", 5)
	v.SetDefault("INTAKE_MAX_QUESTIONS", 12)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("GATEWAY_MODE")
	v.BindEnv("GATEWAY_BASE_URL")
	v.BindEnv("GATEWAY_API_KEY")
	v.BindEnv("GATEWAY_TIMEOUT")
	v.BindEnv("GATEWAY_MAX_ATTEMPTS")
	v.BindEnv("GATEWAY_BACKOFF")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_CHAT_MODEL")
	v.BindEnv("OPENAI_SUMMARY_MODEL")
	v.BindEnv("INTAKE_MIN_QUESTIONS")
	v.BindEnv("INTAKE_MAX_QUESTIONS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
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
// set, it is returned. Otherwise the mode is inferred from ENV:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - Otherwise       → "jwt" (HS256 bearer tokens)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is required, and the selected gateway backend must have its
// credentials configured.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when AUTH_MODE is \"jwt\" (current ENV=%q). "+
			"Refusing to start without authentication configuration", c.Env)
	}

	switch c.GatewayMode {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when GATEWAY_MODE is \"openai\"")
		}
	case "http":
		if c.GatewayBaseURL == "" {
			return fmt.Errorf("GATEWAY_BASE_URL is required when GATEWAY_MODE is \"http\"")
		}
	default:
		return fmt.Errorf("GATEWAY_MODE must be \"openai\" or \"http\", got %q", c.GatewayMode)
	}

	if c.GatewayMaxAttempts < 1 {
		return fmt.Errorf("GATEWAY_MAX_ATTEMPTS must be at least 1, got %d", c.GatewayMaxAttempts)
	}
	if c.IntakeMinQuestions < 1 || c.IntakeMaxQuestions < c.IntakeMinQuestions {
		return fmt.Errorf("intake question bounds are invalid: min=%d max=%d",
			c.IntakeMinQuestions, c.IntakeMaxQuestions)
	}
	return nil
}
